package normalizer

import (
	"encoding/hex"
	"encoding/json"
	"strconv"
	"time"

	"github.com/zeebo/blake3"
)

// Fingerprint derives the dedup id of an event. Events with the same session,
// tool and payload inside the same second share an id.
func Fingerprint(sessionID, toolName string, ts time.Time, raw map[string]interface{}) string {
	body, err := json.Marshal(raw)
	if err != nil {
		body = []byte{}
	}
	payloadSum := blake3.Sum256(body)

	key := sessionID + "|" + toolName + "|" + strconv.FormatInt(ts.Unix(), 10) + "|" + hex.EncodeToString(payloadSum[:8])
	sum := blake3.Sum256([]byte(key))
	return "evt_" + hex.EncodeToString(sum[:12])
}
