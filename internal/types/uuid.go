package types

import (
	"fmt"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/teris-io/shortid"
)

// GenerateUUID returns a k-sortable unique identifier
func GenerateUUID() string {
	return ulid.Make().String()
}

// GenerateUUIDWithPrefix returns a k-sortable unique identifier
// with a prefix ex prm_01HZX3K8Q4N7V5T2W9YB6C0D1E
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

// initializeSID initializes the shortid generator once
func initializeSID() {
	var err error
	sidGenerator, err = shortid.New(1, shortid.DefaultABC, 2342)
	if err != nil {
		panic("failed to initialize shortid generator: " + err.Error())
	}
}

// GenerateShortIDWithPrefix returns a short ID with a prefix.
// Total length is capped at 12 characters, e.g., `RF_XYZ12A8Q`.
func GenerateShortIDWithPrefix(prefix string) string {
	once.Do(initializeSID)

	id, err := sidGenerator.Generate()
	if err != nil {
		return ""
	}
	id = strings.ReplaceAll(id, "-", "")

	availableLen := 12 - len(prefix)
	if availableLen <= 0 {
		return ""
	}

	if len(id) > availableLen {
		id = id[:availableLen]
	}

	return strings.ToUpper(fmt.Sprintf("%s%s", prefix, id))
}

const (
	// Prefixes for all domains and entities

	UUID_PREFIX_PERMIT            = "prm"
	UUID_PREFIX_TEMPORARY_VEHICLE = "tmpv"
	UUID_PREFIX_PRODUCT           = "prod"
	UUID_PREFIX_ORDER             = "ord"
	UUID_PREFIX_ORDER_ITEM        = "oit"
	UUID_PREFIX_REFUND            = "ref"
	UUID_PREFIX_EXTENSION_REQUEST = "ext"
	UUID_PREFIX_PERMIT_EVENT      = "evt"

	// Short, human facing reference numbers
	SHORT_ID_PREFIX_ORDER  = "PO"
	SHORT_ID_PREFIX_REFUND = "RF"
)
