package model

import (
	"fmt"

	"github.com/google/uuid"
)

// GenerateUUIDWithSuffix returns a new UUID prefixed with a short module tag,
// e.g. "tsk_9b1deb4d-...". The tag makes ids self-describing in logs and
// foreign keys.
func GenerateUUIDWithSuffix(module string) string {
	id := uuid.New()
	return fmt.Sprintf("%s_%s", module, id.String())
}
