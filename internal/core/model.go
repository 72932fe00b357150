package core

// System label ids understood by the action compiler and the label stores.
const (
	LabelInbox   = "INBOX"
	LabelTrash   = "TRASH"
	LabelStarred = "STARRED"
	LabelUnread  = "UNREAD"
)

// FilterCriteria is a set of predicates evaluated against a normalized message.
// Unset string fields and a false HasAttachment are vacuously true.
type FilterCriteria struct {
	From          string `json:"from,omitempty"`
	To            string `json:"to,omitempty"`
	Subject       string `json:"subject,omitempty"`
	Body          string `json:"body,omitempty"`
	HasAttachment bool   `json:"hasAttachment,omitempty"`
}

// IsEmpty reports whether no predicate is set
func (c *FilterCriteria) IsEmpty() bool {
	if c == nil {
		return true
	}
	return isBlank(c.From) && isBlank(c.To) && isBlank(c.Subject) && isBlank(c.Body) && !c.HasAttachment
}

// FilterActions is the declarative outcome of a filter
type FilterActions struct {
	ApplyLabel string `json:"applyLabel,omitempty"`
	Archive    bool   `json:"archive,omitempty"`
	Trash      bool   `json:"trash,omitempty"`
	Star       bool   `json:"star,omitempty"`
	MarkRead   bool   `json:"markRead,omitempty"`
}

// CompiledActions is the normalized label delta produced from FilterActions
type CompiledActions struct {
	AddLabelIDs    []string
	RemoveLabelIDs []string
	MarkRead       bool
	Star           bool
}

// SmartLabelRule pairs a destination label with optional criteria and a
// description for the classification path.
type SmartLabelRule struct {
	RuleID        string
	AccountID     string
	LabelID       string
	AIDescription string
	Criteria      *FilterCriteria
	IsEnabled     bool
	SortOrder     int
}

// NormalizedMessage is the engine's view of one email
type NormalizedMessage struct {
	ID            string   `json:"id"`
	ThreadID      string   `json:"threadId"`
	FromAddress   string   `json:"fromAddress,omitempty"`
	FromName      string   `json:"fromName,omitempty"`
	ToAddresses   []string `json:"toAddresses,omitempty"`
	Subject       string   `json:"subject,omitempty"`
	Snippet       string   `json:"snippet,omitempty"`
	BodyText      string   `json:"bodyText,omitempty"`
	BodyHTML      string   `json:"bodyHtml,omitempty"`
	HasAttachment bool     `json:"hasAttachment,omitempty"`
}

// SmartLabelMatch is the set of labels to apply to one thread
type SmartLabelMatch struct {
	ThreadID string   `json:"threadId"`
	LabelIDs []string `json:"labelIds"`
}

// ClassificationCandidate is one thread sent to the classification path
type ClassificationCandidate struct {
	ThreadID      string
	Subject       string
	Snippet       string
	SenderAddress string
}

// LabelDefinition describes a label to the classification path
type LabelDefinition struct {
	LabelID     string
	Description string
}

// ClassificationRequest is a single classification call
type ClassificationRequest struct {
	AccountID  string
	Candidates []ClassificationCandidate
	Labels     []LabelDefinition
}

// InboxThreadRow is one inbox thread joined with its representative message
type InboxThreadRow struct {
	ThreadID      string
	MessageID     string
	FromAddress   string
	FromName      string
	ToAddresses   []string
	Subject       string
	Snippet       string
	BodyText      string
	BodyHTML      string
	HasAttachment bool
}

// ApplyOutcome records the result of one label application
type ApplyOutcome struct {
	ThreadID string
	LabelID  string
	Err      error
}

// CacheEntry is a cached classification answer for one thread
type CacheEntry struct {
	Key       string
	LabelIDs  []string
	ExpiresAt int64
}
