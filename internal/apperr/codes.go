package apperr

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an error outside the taxonomy.
	CodeUnknown Code = "UNKNOWN"

	// Validation
	CodeInvalidFormat      Code = "INVALID_FORMAT"
	CodeInvalidRange       Code = "INVALID_RANGE"
	CodePastDate           Code = "PAST_DATE"
	CodeInvalidDate        Code = "INVALID_DATE"
	CodeMissingViewing     Code = "MISSING_VIEWING_FIELDS"
	CodeInvalidDecision    Code = "INVALID_DECISION"
	CodeEmptyComment       Code = "EMPTY_COMMENT"
	CodeInvalidDocument    Code = "INVALID_DOCUMENT"
	CodeInvalidInput       Code = "INVALID_INPUT"
	CodeNoDateWindows      Code = "NO_DATE_WINDOWS"
	CodeStartDateNotFuture Code = "START_DATE_NOT_FUTURE"

	// Conflict
	CodeAlreadyBooked          Code = "ALREADY_BOOKED"
	CodeDuplicateApplication   Code = "DUPLICATE_APPLICATION"
	CodeDuplicateDate          Code = "DUPLICATE_DATE"
	CodeListingUnavailable     Code = "LISTING_UNAVAILABLE"
	CodeInvalidTransition      Code = "INVALID_TRANSITION"
	CodeViewingNotPromoted     Code = "VIEWING_NOT_PROMOTED"
	CodeSelfApproval           Code = "SELF_APPROVAL"
	CodeAlreadyApproved        Code = "ALREADY_APPROVED"
	CodeNoProposal             Code = "NO_PROPOSAL"
	CodeLeaseSigned            Code = "LEASE_SIGNED"
	CodeApplicationNotApproved Code = "APPLICATION_NOT_APPROVED"

	// Not found
	CodeListingNotFound     Code = "LISTING_NOT_FOUND"
	CodeApplicationNotFound Code = "APPLICATION_NOT_FOUND"
	CodeDateNotFound        Code = "VIEWING_DATE_NOT_FOUND"
	CodeSlotNotFound        Code = "SLOT_NOT_FOUND"
	CodeParentNotFound      Code = "PARENT_NOT_FOUND"
	CodeLeaseNotFound       Code = "LEASE_NOT_FOUND"

	// Authorization
	CodeNotOwner        Code = "NOT_OWNER"
	CodeForbidden       Code = "FORBIDDEN"
	CodeUnauthenticated Code = "UNAUTHENTICATED"
)

var kinds = map[Code]Kind{
	CodeInvalidFormat:      KindValidation,
	CodeInvalidRange:       KindValidation,
	CodePastDate:           KindValidation,
	CodeInvalidDate:        KindValidation,
	CodeMissingViewing:     KindValidation,
	CodeInvalidDecision:    KindValidation,
	CodeEmptyComment:       KindValidation,
	CodeInvalidDocument:    KindValidation,
	CodeInvalidInput:       KindValidation,
	CodeNoDateWindows:      KindValidation,
	CodeStartDateNotFuture: KindValidation,

	CodeAlreadyBooked:          KindConflict,
	CodeDuplicateApplication:   KindConflict,
	CodeDuplicateDate:          KindConflict,
	CodeListingUnavailable:     KindConflict,
	CodeInvalidTransition:      KindConflict,
	CodeViewingNotPromoted:     KindConflict,
	CodeSelfApproval:           KindConflict,
	CodeAlreadyApproved:        KindConflict,
	CodeNoProposal:             KindConflict,
	CodeLeaseSigned:            KindConflict,
	CodeApplicationNotApproved: KindConflict,

	CodeListingNotFound:     KindNotFound,
	CodeApplicationNotFound: KindNotFound,
	CodeDateNotFound:        KindNotFound,
	CodeSlotNotFound:        KindNotFound,
	CodeParentNotFound:      KindNotFound,
	CodeLeaseNotFound:       KindNotFound,

	CodeNotOwner:        KindAuthorization,
	CodeForbidden:       KindAuthorization,
	CodeUnauthenticated: KindAuthorization,
}

// Kind returns the kind a code belongs to.
func (c Code) Kind() Kind {
	if k, ok := kinds[c]; ok {
		return k
	}
	return KindInternal
}
