package client

import (
	"encoding/json"

	"github.com/pixlverse/office/internal/protocol"
)

// Outbound helpers, one per inbound room message. Local input flows
// through these; the authoritative echo comes back on the diff stream.

func (s *Sync) UpdatePlayer(x, y float64, anim string) error {
	return s.out.Send(protocol.MsgUpdatePlayer, protocol.UpdatePlayer{X: x, Y: y, Anim: anim})
}

func (s *Sync) UpdatePlayerName(name string) error {
	return s.out.Send(protocol.MsgUpdatePlayerName, protocol.UpdatePlayerName{Name: name})
}

func (s *Sync) UpdatePlayerProps(props map[string]bool) error {
	return s.out.Send(protocol.MsgUpdatePlayerProps, protocol.UpdatePlayerProps{Props: props})
}

func (s *Sync) ConnectToComputer(computerID string) error {
	return s.out.Send(protocol.MsgConnectToComputer, protocol.ConnectToComputer{ComputerID: computerID})
}

func (s *Sync) DisconnectFromComputer(computerID string) error {
	return s.out.Send(protocol.MsgDisconnectFromComputer, protocol.DisconnectFromComputer{ComputerID: computerID})
}

func (s *Sync) StopScreenShare(computerID string) error {
	return s.out.Send(protocol.MsgStopScreenShare, protocol.StopScreenShare{ComputerID: computerID})
}

func (s *Sync) ReadyToConnect() error {
	return s.out.Send(protocol.MsgReadyToConnect, nil)
}

func (s *Sync) VideoConnected() error {
	return s.out.Send(protocol.MsgVideoConnected, nil)
}

func (s *Sync) DisconnectStream(clientID string) error {
	return s.out.Send(protocol.MsgDisconnectStream, protocol.DisconnectStream{ClientID: clientID})
}

func (s *Sync) AddChatMessage(content string) error {
	return s.out.Send(protocol.MsgAddChatMessage, protocol.AddChatMessage{Content: content})
}

func (s *Sync) SendWebRTCSignal(to string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return s.out.Send(protocol.MsgWebRTCSignal, protocol.WebRTCSignal{To: to, Data: raw})
}
