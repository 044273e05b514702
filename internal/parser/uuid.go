package parser

import (
	"github.com/google/uuid"

	"github.com/coredb/qlcore/internal/errs"
	"github.com/coredb/qlcore/internal/value"
)

// parseUUID parses a u'...' literal's raw contents into a value.Uuid.
func parseUUID(raw string) (value.Uuid, error) {
	u, err := uuid.Parse(raw)
	if err != nil {
		return value.Uuid{}, errs.Wrap(errs.Parse, err, "malformed uuid literal", errs.F("raw", raw))
	}
	return value.Uuid(u), nil
}
