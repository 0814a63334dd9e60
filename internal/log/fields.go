package log

// Common field names for structured logging
const (
	FieldComponent     = "component"
	FieldRequestID     = "request_id"
	FieldClientIP      = "client_ip"
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldQuery         = "query"
	FieldStatusCode    = "status_code"
	FieldDuration      = "duration_ms"
	FieldDurationHuman = "duration_human"
	FieldUserAgent     = "user_agent"
	FieldSuccess       = "success"
	FieldError         = "error"
	FieldOperation     = "operation"

	FieldFeeID         = "fee_id"
	FieldStudentID     = "student_id"
	FieldAcademicYear  = "academic_year"
	FieldInstallmentID = "installment_id"
	FieldExpenseID     = "expense_id"
	FieldAmountPaise   = "amount_paise"
	FieldCategory      = "category"
	FieldReceiptNo     = "receipt_no"
	FieldBucket        = "bucket"
	FieldSheetsRef     = "sheets_ref"
)

// Components defines standard component names
const (
	ComponentApp      = "app"
	ComponentHTTP     = "http"
	ComponentLedger   = "ledger"
	ComponentStorage  = "storage"
	ComponentAMQP     = "amqp"
	ComponentWorker   = "worker"
	ComponentExport   = "export"
	ComponentReminder = "reminder"
	ComponentCache    = "cache"
	ComponentSecurity = "security"
	ComponentSession  = "session"
)

// Operations defines standard operation names
const (
	OpCreate   = "create"
	OpRead     = "read"
	OpList     = "list"
	OpPay      = "pay"
	OpExpense  = "expense"
	OpExport   = "export"
	OpNotify   = "notify"
	OpValidate = "validate"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)
