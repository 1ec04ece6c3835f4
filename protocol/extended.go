package protocol

import (
	"github.com/jackc/pgio"
)

// ParseComplete is sent when backend parsed a prepared statement successfully
var ParseComplete = Message{'1', 0, 0, 0, 4}

// BindComplete is sent when backend prepared a portal and finished planning the query
var BindComplete = Message{'2', 0, 0, 0, 4}

// CloseComplete is sent after a Close message removed (or failed to find) the
// named statement or portal
var CloseComplete = Message{'3', 0, 0, 0, 4}

// PortalSuspended is sent when an Execute hit its row limit before the portal
// was exhausted; a following Execute resumes the same portal
var PortalSuspended = Message{'s', 0, 0, 0, 4}

// ParameterDescription is sent when backend received Describe message from frontend
// with ObjectType = 'S' - requesting to describe prepared statement with a provided name
func ParameterDescription(paramOIDs []uint32) Message {
	res := Message{'t'}
	sp := len(res)
	res = pgio.AppendInt32(res, -1)

	res = pgio.AppendUint16(res, uint16(len(paramOIDs)))
	for _, oid := range paramOIDs {
		res = pgio.AppendUint32(res, oid)
	}

	pgio.SetInt32(res[sp:], int32(len(res[sp:])))
	return res
}
