package order

// Issue is a client-side validation failure. All issues are raised before any
// network call. Wrap with fmt.Errorf("%w: ...", issue) and match with errors.Is.
type Issue string

const (
	IssueSenderNotSigner          Issue = "SENDER_ID_NOT_A_SIGNER"
	IssueSenderAndReceiverMissing Issue = "SENDER_ID_AND_RECEIVER_ID_MISSING"
	IssueNoReceiver               Issue = "NO_RECEIVER_ID"
	IssueActionKindNotSupported   Issue = "ACTION_KIND_NOT_SUPPORTED"
	IssueWrongInput               Issue = "WRONG_INPUT"
	IssueSignatureUnknown         Issue = "SIGNATURE_UNKNOWN"
)

func (i Issue) Error() string { return string(i) }
