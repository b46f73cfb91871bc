package room

import (
	"github.com/rs/zerolog/log"

	"github.com/pixlverse/office/internal/command"
	"github.com/pixlverse/office/internal/domain"
	"github.com/pixlverse/office/internal/protocol"
)

// handleFrame routes one decoded client message. Commands mutate state
// through the command layer; the remaining types are inline handlers
// that either flip a single flag or fan out directed messages without
// touching state. Bad payloads are logged and dropped, never surfaced
// to the sender.
func (r *Room) handleFrame(sid domain.SessionID, data []byte) {
	env, err := protocol.DecodeEnvelope(data)
	if err != nil {
		log.Warn().Err(err).Str("module", "room").Str("sid", string(sid)).Msg("bad frame")
		return
	}

	switch env.T {
	case protocol.MsgConnectToComputer:
		p, err := protocol.DecodePayload[protocol.ConnectToComputer](env)
		if err != nil {
			r.logPayloadErr(sid, env.T, err)
			return
		}
		command.Apply(r.office, command.ComputerAddUser{Session: sid, ComputerID: p.ComputerID})

	case protocol.MsgDisconnectFromComputer:
		p, err := protocol.DecodePayload[protocol.DisconnectFromComputer](env)
		if err != nil {
			r.logPayloadErr(sid, env.T, err)
			return
		}
		command.Apply(r.office, command.ComputerRemoveUser{Session: sid, ComputerID: p.ComputerID})

	case protocol.MsgUpdatePlayer:
		p, err := protocol.DecodePayload[protocol.UpdatePlayer](env)
		if err != nil {
			r.logPayloadErr(sid, env.T, err)
			return
		}
		command.Apply(r.office, command.PlayerUpdate{Session: sid, X: p.X, Y: p.Y, Anim: p.Anim})

	case protocol.MsgUpdatePlayerName:
		p, err := protocol.DecodePayload[protocol.UpdatePlayerName](env)
		if err != nil {
			r.logPayloadErr(sid, env.T, err)
			return
		}
		command.Apply(r.office, command.PlayerUpdateName{Session: sid, Name: p.Name})

	case protocol.MsgUpdatePlayerProps:
		p, err := protocol.DecodePayload[protocol.UpdatePlayerProps](env)
		if err != nil {
			r.logPayloadErr(sid, env.T, err)
			return
		}
		command.Apply(r.office, command.PlayerUpdateProps{Session: sid, Props: p.Props})

	case protocol.MsgAddChatMessage:
		p, err := protocol.DecodePayload[protocol.AddChatMessage](env)
		if err != nil {
			r.logPayloadErr(sid, env.T, err)
			return
		}
		command.Apply(r.office, command.ChatMessageUpdate{Session: sid, Content: p.Content})

	case protocol.MsgReadyToConnect:
		r.office.SetPlayerFlag(sid, "readyToConnect", true)

	case protocol.MsgVideoConnected:
		r.office.SetPlayerFlag(sid, "videoConnected", true)

	case protocol.MsgStopScreenShare:
		p, err := protocol.DecodePayload[protocol.StopScreenShare](env)
		if err != nil {
			r.logPayloadErr(sid, env.T, err)
			return
		}
		r.fanOutStopScreenShare(sid, p.ComputerID)

	case protocol.MsgDisconnectStream:
		p, err := protocol.DecodePayload[protocol.DisconnectStream](env)
		if err != nil {
			r.logPayloadErr(sid, env.T, err)
			return
		}
		r.sendTo(domain.SessionID(p.ClientID), protocol.MsgDisconnectStream,
			protocol.DisconnectStreamNotice{SenderID: string(sid)})

	case protocol.MsgWebRTCSignal:
		p, err := protocol.DecodePayload[protocol.WebRTCSignal](env)
		if err != nil {
			r.logPayloadErr(sid, env.T, err)
			return
		}
		r.sendTo(domain.SessionID(p.To), protocol.MsgWebRTCSignal,
			protocol.WebRTCSignalNotice{From: string(sid), Data: p.Data})

	default:
		log.Warn().Str("module", "room").Str("type", env.T).Msg("unknown message type")
	}

	r.flush()
}

// fanOutStopScreenShare notifies every other user of the computer that
// the sender stopped presenting. Reads state only; nothing is diffed.
func (r *Room) fanOutStopScreenShare(sender domain.SessionID, computerID string) {
	comp, ok := r.office.Computer(computerID)
	if !ok {
		return
	}
	for uid := range comp.Users {
		if uid == sender {
			continue
		}
		r.sendTo(uid, protocol.MsgStopScreenShare, protocol.StopScreenShareNotice{SenderID: string(sender)})
	}
}

func (r *Room) logPayloadErr(sid domain.SessionID, t string, err error) {
	log.Warn().Err(err).Str("module", "room").Str("sid", string(sid)).Str("type", t).Msg("invalid payload")
}
