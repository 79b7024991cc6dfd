// Package errmsg provides consistent error formatting for user-facing messages.
package errmsg

import (
	"errors"
	"fmt"

	"github.com/llehouerou/beatbank/internal/analyzer"
	"github.com/llehouerou/beatbank/internal/catalog"
)

// Op represents an operation that can fail.
type Op string

// Operation constants - grouped by domain.
const (
	// Track operations
	OpTrackAdd     Op = "add track"
	OpTrackLoad    Op = "load track"
	OpTrackList    Op = "list tracks"
	OpTrackUpdate  Op = "update track"
	OpTrackDelete  Op = "delete track"
	OpTrackReorder Op = "reorder tracks"
	OpTrackTags    Op = "read file tags"
	OpTrackImport  Op = "import tracks"

	// Enrichment
	OpTrackEnrich Op = "analyze track"

	// Collection operations
	OpCollectionAdd    Op = "create collection"
	OpCollectionLoad   Op = "load collection"
	OpCollectionList   Op = "list collections"
	OpCollectionUpdate Op = "update collection"
	OpCollectionDelete Op = "delete collection"

	// Membership operations
	OpMemberAdd    Op = "add track to collection"
	OpMemberRemove Op = "remove track from collection"
	OpMemberList   Op = "list collection tracks"

	// Settings
	OpSettingsLoad Op = "load settings"
	OpSettingsSave Op = "save settings"

	// Initialization
	OpInitialize Op = "initialize application"
)

// Error kinds reported by Kind.
const (
	KindNotFound   = "not_found"
	KindConstraint = "constraint"
	KindConnection = "connection"
	KindAnalyzer   = "analyzer"
	KindInternal   = "internal"
)

// Format creates a user-friendly error message.
func Format(op Op, err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Failed to %s: %v", op, err)
}

// FormatWith creates an error message with additional context.
func FormatWith(op Op, context string, err error) string {
	if err == nil {
		return ""
	}
	if context == "" {
		return Format(op, err)
	}
	return fmt.Sprintf("Failed to %s '%s': %v", op, context, err)
}

// Kind classifies err into one of the Kind* constants, or "" for nil.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, catalog.ErrNotFound):
		return KindNotFound
	case errors.Is(err, catalog.ErrConstraintViolation):
		return KindConstraint
	case errors.Is(err, catalog.ErrConnection):
		return KindConnection
	case errors.Is(err, analyzer.ErrAnalyzer):
		return KindAnalyzer
	default:
		return KindInternal
	}
}
