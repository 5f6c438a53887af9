package ledger

import (
	"encoding/csv"
	"strings"
	"time"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
)

// newDecoder wraps a csv.Reader in a csvutil decoder with lenient time
// parsing: blank timestamp columns decode to the zero time instead of
// failing the row.
func newDecoder(r *csv.Reader) (*csvutil.Decoder, error) {
	dec, err := csvutil.NewDecoder(r)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: decode header")
	}
	dec.Register(func(data []byte, t *time.Time) error {
		s := strings.TrimSpace(string(data))
		if s == "" {
			*t = time.Time{}
			return nil
		}
		parsed, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return err
		}
		*t = parsed
		return nil
	})
	return dec, nil
}
