package types

import (
	"fmt"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/teris-io/shortid"
)

const (
	UUID_PREFIX_INVOICE     = "inv"
	UUID_PREFIX_CREDIT_NOTE = "cn"
	UUID_PREFIX_TRANSACTION = "txn"
	UUID_PREFIX_LINE_ITEM   = "li"
	UUID_PREFIX_REQUEST     = "req"

	SHORT_ID_PREFIX_INVOICE     = "INV-"
	SHORT_ID_PREFIX_CREDIT_NOTE = "CN-"
)

// GenerateUUID returns a k-sortable unique identifier
func GenerateUUID() string {
	return ulid.Make().String()
}

// GenerateUUIDWithPrefix returns a k-sortable unique identifier
// with a prefix ex inv_0ujsswThIGTUYm2K8FjOOfXtY1K
func GenerateUUIDWithPrefix(prefix string) string {
	if prefix == "" {
		return GenerateUUID()
	}
	return fmt.Sprintf("%s_%s", prefix, GenerateUUID())
}

var (
	sidGenerator *shortid.Shortid
	once         sync.Once
)

func initializeSID() {
	var err error
	sidGenerator, err = shortid.New(1, shortid.DefaultABC, 2342)
	if err != nil {
		panic("failed to initialize shortid generator: " + err.Error())
	}
}

// GenerateDocumentNumber returns a human-facing document number such as
// INV-XK2M9QT or CN-7PLW3AZ. Uniqueness is enforced by the store; callers
// retry with a disambiguating suffix on collision.
func GenerateDocumentNumber(prefix string) string {
	once.Do(initializeSID)

	id, err := sidGenerator.Generate()
	if err != nil {
		return prefix + strings.ToUpper(GenerateUUID()[:8])
	}
	id = strings.ReplaceAll(id, "-", "")
	id = strings.ReplaceAll(id, "_", "")

	return strings.ToUpper(prefix + id)
}

// WithNumberSuffix appends a short disambiguating suffix to a document number
// that collided with an existing one.
func WithNumberSuffix(number string) string {
	return fmt.Sprintf("%s-%s", number, strings.ToUpper(GenerateUUID()[20:])) // last 6 chars, random-heavy portion of ulid
}
