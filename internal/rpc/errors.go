package rpc

import (
	"errors"

	"github.com/docrag/engine/internal/ragerr"
)

// messageFor converts any error into a user-facing message suitable for
// a {success:false, message} response. It never panics and never
// returns an empty string.
func messageFor(err error) string {
	if err == nil {
		return ""
	}
	var re *ragerr.RagError
	if errors.As(err, &re) {
		if re.Suggestion != "" {
			return re.Message + " " + re.Suggestion
		}
		return re.Message
	}
	return err.Error()
}
