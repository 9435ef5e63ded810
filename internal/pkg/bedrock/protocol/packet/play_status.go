package packet

import (
	"github.com/haveachin/proxypass/internal/pkg/bedrock/protocol"
)

type PlayStatusCode int32

const (
	PlayStatusLoginSuccess PlayStatusCode = iota
	PlayStatusLoginFailedClient
	PlayStatusLoginFailedServer
	PlayStatusPlayerSpawn
	PlayStatusLoginFailedInvalidTenant
	PlayStatusLoginFailedVanillaEdu
	PlayStatusLoginFailedEduVanilla
	PlayStatusLoginFailedServerFull
	PlayStatusLoginFailedEditorVanilla
	PlayStatusLoginFailedVanillaEditor
)

var playStatusNames = map[PlayStatusCode]string{
	PlayStatusLoginSuccess:      "login-success",
	PlayStatusLoginFailedClient: "client-old",
	PlayStatusLoginFailedServer: "server-old",
	PlayStatusPlayerSpawn:       "player-spawn",
}

func (c PlayStatusCode) String() string {
	if name, ok := playStatusNames[c]; ok {
		return name
	}
	return "unknown"
}

// PlayStatus is sent by the server to update a player on the play status. This includes failed statuses due
// to a mismatched version.
type PlayStatus struct {
	Status PlayStatusCode
}

// ID ...
func (*PlayStatus) ID() uint32 {
	return IDPlayStatus
}

// Marshal ...
func (pk *PlayStatus) Marshal(w *protocol.Writer) {
	w.BEInt32(int32(pk.Status))
}

// Unmarshal ...
func (pk *PlayStatus) Unmarshal(r *protocol.Reader) error {
	var status int32
	if err := r.BEInt32(&status); err != nil {
		return err
	}
	pk.Status = PlayStatusCode(status)
	return nil
}
