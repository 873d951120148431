package ws

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lumenweave/stripzones/internal/blend"
	"github.com/lumenweave/stripzones/internal/compose"
	"github.com/lumenweave/stripzones/internal/layout"
	"github.com/lumenweave/stripzones/internal/preset"
)

// command is the envelope every control message uses. Fields beyond cmd and
// zone are read per command; unknown commands get an error reply.
type command struct {
	Cmd        string                 `json:"cmd"`
	Zone       int                    `json:"zone"`
	Effect     *int                   `json:"effect,omitempty"`
	Brightness *uint8                 `json:"brightness,omitempty"`
	Speed      *uint8                 `json:"speed,omitempty"`
	Palette    *uint8                 `json:"palette,omitempty"`
	Blend      string                 `json:"blend,omitempty"`
	Enabled    *bool                  `json:"enabled,omitempty"`
	Layout     []layout.Segment       `json:"layout,omitempty"`
	Order      []uint8                `json:"order,omitempty"`
	Audio      *compose.AudioConfig   `json:"audio,omitempty"`
	Trigger    *compose.TriggerConfig `json:"trigger,omitempty"`
	Preset     string                 `json:"preset,omitempty"`
	Slot       *int                   `json:"slot,omitempty"`
}

type reply struct {
	Type  string `json:"type"`
	Cmd   string `json:"cmd"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	Value any    `json:"value,omitempty"`
}

// HandleControlWS serves the command socket. One goroutine per client reads
// commands, applies them to the engine, and writes a reply per command.
func (h *Hub) HandleControlWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	go func() {
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var cmd command
			if err := json.Unmarshal(data, &cmd); err != nil {
				h.writeReply(conn, reply{Type: "reply", Cmd: "?", Error: "bad json"})
				continue
			}
			h.writeReply(conn, h.dispatch(cmd))
		}
	}()
}

func (h *Hub) writeReply(conn *websocket.Conn, rep reply) {
	conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	if err := conn.WriteJSON(rep); err != nil {
		h.log.Debug().Err(err).Msg("write reply")
	}
}

func (h *Hub) dispatch(cmd command) reply {
	rep := reply{Type: "reply", Cmd: cmd.Cmd, OK: true}
	fail := func(err error) reply {
		rep.OK = false
		rep.Error = err.Error()
		return rep
	}

	switch cmd.Cmd {
	case "set_effect":
		if cmd.Effect == nil {
			rep.OK, rep.Error = false, "missing effect"
			break
		}
		if err := h.comp.SetZoneEffect(cmd.Zone, *cmd.Effect); err != nil {
			return fail(err)
		}
	case "set_brightness":
		if cmd.Brightness == nil {
			rep.OK, rep.Error = false, "missing brightness"
			break
		}
		rep.Value = h.comp.SetZoneBrightness(cmd.Zone, *cmd.Brightness)
	case "set_speed":
		if cmd.Speed == nil {
			rep.OK, rep.Error = false, "missing speed"
			break
		}
		rep.Value = h.comp.SetZoneSpeed(cmd.Zone, *cmd.Speed)
	case "set_palette":
		if cmd.Palette == nil {
			rep.OK, rep.Error = false, "missing palette"
			break
		}
		rep.Value = h.comp.SetZonePalette(cmd.Zone, *cmd.Palette)
	case "set_blend":
		mode, ok := blend.ParseMode(cmd.Blend)
		if !ok {
			rep.OK, rep.Error = false, "unknown blend mode"
			break
		}
		rep.Value = h.comp.SetZoneBlendMode(cmd.Zone, mode).String()
	case "set_zone_enabled":
		if cmd.Enabled == nil {
			rep.OK, rep.Error = false, "missing enabled"
			break
		}
		h.comp.SetZoneEnabled(cmd.Zone, *cmd.Enabled)
	case "set_system_enabled":
		if cmd.Enabled == nil {
			rep.OK, rep.Error = false, "missing enabled"
			break
		}
		h.comp.SetEnabled(*cmd.Enabled)
	case "set_layout":
		// Clients may list segments in any order; normalize before validation.
		if err := h.comp.SetLayout(layout.OrderByCentreDistance(cmd.Layout)); err != nil {
			return fail(err)
		}
	case "reorder":
		if err := h.comp.ReorderZones(cmd.Order); err != nil {
			return fail(err)
		}
	case "set_audio":
		if cmd.Audio == nil {
			rep.OK, rep.Error = false, "missing audio"
			break
		}
		rep.Value = h.comp.SetZoneAudioConfig(cmd.Zone, *cmd.Audio)
	case "set_trigger":
		if cmd.Trigger == nil {
			rep.OK, rep.Error = false, "missing trigger"
			break
		}
		stored, err := h.comp.SetZoneTrigger(cmd.Zone, *cmd.Trigger)
		if err != nil {
			return fail(err)
		}
		rep.Value = stored
	case "load_preset":
		p, ok := preset.Find(cmd.Preset)
		if !ok {
			rep.OK, rep.Error = false, "unknown preset"
			break
		}
		if err := h.comp.Import(p.Snapshot); err != nil {
			return fail(err)
		}
	case "save_slot":
		if cmd.Slot == nil || h.store == nil {
			rep.OK, rep.Error = false, "missing slot"
			break
		}
		if err := h.store.Save(*cmd.Slot, h.comp.Export()); err != nil {
			return fail(err)
		}
	case "load_slot":
		if cmd.Slot == nil || h.store == nil {
			rep.OK, rep.Error = false, "missing slot"
			break
		}
		snap, err := h.store.Load(*cmd.Slot)
		if err != nil {
			return fail(err)
		}
		if err := h.comp.Import(snap); err != nil {
			return fail(err)
		}
	case "get_state":
		rep.Value = h.comp.Export()
	default:
		rep.OK, rep.Error = false, "unknown command"
	}
	return rep
}
