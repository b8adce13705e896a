package checkpoint

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
)

// Key identifies a checkpointed pipeline step. Step names group records;
// Params must carry every input that can change the step's output (model
// identity, temperature, chunk boundaries, prompt version, upstream content
// hashes) so that a configuration change always produces a different record
// identity instead of silently reusing a stale result.
type Key struct {
	Step   string
	Params []Param
}

// Param is one named input contributing to a step's identity.
type Param struct {
	Name  string
	Value string
}

// P builds a string parameter.
func P(name, value string) Param {
	return Param{Name: name, Value: value}
}

// PInt builds an integer parameter.
func PInt(name string, value int) Param {
	return Param{Name: name, Value: strconv.Itoa(value)}
}

// PFloat builds a float parameter.
func PFloat(name string, value float64) Param {
	return Param{Name: name, Value: strconv.FormatFloat(value, 'g', -1, 64)}
}

// ID returns the stable record identity for the key: the step name joined
// with a digest over the canonicalized parameter set. Parameters are sorted
// by name so construction order never changes the identity.
func (k Key) ID() string {
	params := make([]Param, len(k.Params))
	copy(params, k.Params)
	sort.Slice(params, func(i, j int) bool { return params[i].Name < params[j].Name })

	hasher := sha256.New()
	hasher.Write([]byte(k.Step))
	for _, param := range params {
		hasher.Write([]byte{0})
		hasher.Write([]byte(param.Name))
		hasher.Write([]byte{'='})
		hasher.Write([]byte(param.Value))
	}
	digest := hex.EncodeToString(hasher.Sum(nil))

	step := sanitizeStep(k.Step)
	if step == "" {
		step = "step"
	}
	return step + "-" + digest[:16]
}

func sanitizeStep(step string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(step)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
