package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"feeledger/internal/core"

	_ "modernc.org/sqlite"
)

const dateLayout = "2006-01-02"

// PaymentRecord is a recorded installment payment joined with its fee, the
// unit handed to the export worker.
type PaymentRecord struct {
	InstallmentID string
	FeeID         string
	StudentID     string
	StudentName   string
	AcademicYear  string
	DueDate       core.Date
	Amount        core.Money
	PaidDate      core.Date
	ReceiptNumber string
	PaymentMethod string
}

type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository opens (creating if needed) the ledger database and
// applies pending migrations. Transactions are opened with an immediate
// write lock so the balance-check-then-append in AddExpense serializes
// across connections instead of racing.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := "file:" + dbPath + "?_txlock=immediate&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreateFee inserts a fee with its installment schedule in one transaction.
// Missing ids are assigned.
func (r *SQLiteRepository) CreateFee(ctx context.Context, fee core.Fee) (core.Fee, error) {
	if fee.ID == "" {
		fee.ID = uuid.NewString()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Fee{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO fees (id, student_id, student_name, academic_year, total_amount_paise, pool_amount_paise)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		fee.ID, fee.StudentID, fee.StudentName, fee.AcademicYear, fee.TotalAmount.Paise, fee.PoolAmount.Paise)
	if err != nil {
		return core.Fee{}, fmt.Errorf("insert fee: %w", err)
	}

	for i := range fee.Installments {
		if fee.Installments[i].ID == "" {
			fee.Installments[i].ID = uuid.NewString()
		}
		inst := fee.Installments[i]
		_, err = tx.ExecContext(ctx,
			`INSERT INTO installments (id, fee_id, due_date, amount_paise, status, paid_date, receipt_no, payment_method)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			inst.ID, fee.ID, inst.DueDate.Format(dateLayout), inst.Amount.Paise, string(inst.Status),
			nullableDate(inst.PaidDate), nullableString(inst.ReceiptNumber), nullableString(inst.PaymentMethod))
		if err != nil {
			return core.Fee{}, fmt.Errorf("insert installment: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return core.Fee{}, fmt.Errorf("commit fee: %w", err)
	}

	slog.InfoContext(ctx, "Fee provisioned",
		"fee_id", fee.ID,
		"student_id", fee.StudentID,
		"academic_year", fee.AcademicYear,
		"installments", len(fee.Installments))

	return fee, nil
}

// GetFee loads a fee with its installments and expenses.
func (r *SQLiteRepository) GetFee(ctx context.Context, id string) (core.Fee, error) {
	var fee core.Fee
	err := r.db.QueryRowContext(ctx,
		`SELECT id, student_id, student_name, academic_year, total_amount_paise, pool_amount_paise
		 FROM fees WHERE id = ?`, id).
		Scan(&fee.ID, &fee.StudentID, &fee.StudentName, &fee.AcademicYear, &fee.TotalAmount.Paise, &fee.PoolAmount.Paise)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Fee{}, core.ErrFeeNotFound
	}
	if err != nil {
		return core.Fee{}, fmt.Errorf("select fee: %w", err)
	}

	if fee.Installments, err = r.installmentsForFee(ctx, fee.ID); err != nil {
		return core.Fee{}, err
	}
	if fee.Expenses, err = r.expensesForFee(ctx, fee.ID); err != nil {
		return core.Fee{}, err
	}
	return fee, nil
}

// ListFeesByYear returns all fees for an academic year, fully loaded, in
// student-name order.
func (r *SQLiteRepository) ListFeesByYear(ctx context.Context, academicYear string) ([]core.Fee, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, student_id, student_name, academic_year, total_amount_paise, pool_amount_paise
		 FROM fees WHERE academic_year = ? ORDER BY student_name, id`, academicYear)
	if err != nil {
		return nil, fmt.Errorf("select fees for year: %w", err)
	}
	defer rows.Close()

	var fees []core.Fee
	for rows.Next() {
		var fee core.Fee
		if err := rows.Scan(&fee.ID, &fee.StudentID, &fee.StudentName, &fee.AcademicYear,
			&fee.TotalAmount.Paise, &fee.PoolAmount.Paise); err != nil {
			return nil, fmt.Errorf("scan fee: %w", err)
		}
		fees = append(fees, fee)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fees: %w", err)
	}

	for i := range fees {
		if fees[i].Installments, err = r.installmentsForFee(ctx, fees[i].ID); err != nil {
			return nil, err
		}
		if fees[i].Expenses, err = r.expensesForFee(ctx, fees[i].ID); err != nil {
			return nil, err
		}
	}
	return fees, nil
}

// AddExpense appends an expense to a fee's pool ledger. The remaining-balance
// check and the insert run inside one immediate transaction keyed by fee id,
// so two concurrent adds cannot both pass the check against a stale balance.
func (r *SQLiteRepository) AddExpense(ctx context.Context, feeID string, e core.Expense) (core.Expense, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Expense{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var poolPaise int64
	err = tx.QueryRowContext(ctx, `SELECT pool_amount_paise FROM fees WHERE id = ?`, feeID).Scan(&poolPaise)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, core.ErrFeeNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("select pool amount: %w", err)
	}

	var spentPaise int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_paise), 0) FROM expenses WHERE fee_id = ?`, feeID).Scan(&spentPaise)
	if err != nil {
		return core.Expense{}, fmt.Errorf("sum expenses: %w", err)
	}

	remaining := poolPaise - spentPaise
	if e.Amount.Paise > remaining {
		return core.Expense{}, &core.InsufficientPoolFundsError{
			Attempted: e.Amount,
			Available: core.Money{Paise: remaining},
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO expenses (id, fee_id, expense_date, description, amount_paise, category, bill_no)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, feeID, e.Date.Format(dateLayout), e.Description, e.Amount.Paise, string(e.Category),
		nullableString(e.BillNumber))
	if err != nil {
		return core.Expense{}, fmt.Errorf("insert expense: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return core.Expense{}, fmt.Errorf("commit expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense recorded",
		"expense_id", e.ID,
		"fee_id", feeID,
		"amount_paise", e.Amount.Paise,
		"category", string(e.Category),
		"remaining_paise", remaining-e.Amount.Paise)

	return e, nil
}

// MarkInstallmentPaid updates exactly one installment to paid and queues it
// for export. Returns ErrInstallmentNotFound when the id does not belong to
// the fee. Other installments are untouched.
func (r *SQLiteRepository) MarkInstallmentPaid(ctx context.Context, feeID, installmentID string, paidDate core.Date, receiptNo, method string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE installments
		 SET status = ?, paid_date = ?, receipt_no = ?, payment_method = ?, export_state = 'pending'
		 WHERE id = ? AND fee_id = ?`,
		string(core.StatusPaid), paidDate.Format(dateLayout), receiptNo, nullableString(method),
		installmentID, feeID)
	if err != nil {
		return fmt.Errorf("update installment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrInstallmentNotFound
	}

	slog.InfoContext(ctx, "Installment marked paid",
		"installment_id", installmentID,
		"fee_id", feeID,
		"receipt_no", receiptNo,
		"paid_date", paidDate.Format(dateLayout))
	return nil
}

// GetPaymentRecord loads one recorded payment for export.
func (r *SQLiteRepository) GetPaymentRecord(ctx context.Context, installmentID string) (PaymentRecord, error) {
	row := r.db.QueryRowContext(ctx, paymentRecordQuery+` AND i.id = ?`, string(core.StatusPaid), installmentID)
	rec, err := scanPaymentRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return PaymentRecord{}, core.ErrInstallmentNotFound
	}
	if err != nil {
		return PaymentRecord{}, fmt.Errorf("select payment record: %w", err)
	}
	return rec, nil
}

// PendingExportPayments lists paid installments not yet exported. Backup
// path for export messages lost in transit.
func (r *SQLiteRepository) PendingExportPayments(ctx context.Context, limit int) ([]PaymentRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		paymentRecordQuery+` AND i.export_state = 'pending' ORDER BY i.paid_date LIMIT ?`,
		string(core.StatusPaid), limit)
	if err != nil {
		return nil, fmt.Errorf("select pending exports: %w", err)
	}
	defer rows.Close()

	var recs []PaymentRecord
	for rows.Next() {
		rec, err := scanPaymentRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment record: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending exports: %w", err)
	}
	return recs, nil
}

// MarkPaymentExported flags a payment as successfully exported.
func (r *SQLiteRepository) MarkPaymentExported(ctx context.Context, installmentID string) error {
	if err := r.setExportState(ctx, installmentID, "exported"); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Payment marked exported", "installment_id", installmentID)
	return nil
}

// MarkPaymentExportError flags a payment whose export attempt failed.
func (r *SQLiteRepository) MarkPaymentExportError(ctx context.Context, installmentID string) error {
	if err := r.setExportState(ctx, installmentID, "error"); err != nil {
		return err
	}
	slog.WarnContext(ctx, "Payment marked with export error", "installment_id", installmentID)
	return nil
}

func (r *SQLiteRepository) setExportState(ctx context.Context, installmentID, state string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE installments SET export_state = ? WHERE id = ?`, state, installmentID)
	if err != nil {
		return fmt.Errorf("set export state: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrInstallmentNotFound
	}
	return nil
}

const paymentRecordQuery = `
	SELECT i.id, f.id, f.student_id, f.student_name, f.academic_year,
	       i.due_date, i.amount_paise, i.paid_date, i.receipt_no, i.payment_method
	FROM installments i
	JOIN fees f ON f.id = i.fee_id
	WHERE i.status = ?`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPaymentRecord(row rowScanner) (PaymentRecord, error) {
	var (
		rec                       PaymentRecord
		dueDate                   string
		paidDate, receipt, method sql.NullString
	)
	if err := row.Scan(&rec.InstallmentID, &rec.FeeID, &rec.StudentID, &rec.StudentName,
		&rec.AcademicYear, &dueDate, &rec.Amount.Paise, &paidDate, &receipt, &method); err != nil {
		return PaymentRecord{}, err
	}
	var err error
	if rec.DueDate, err = parseDate(dueDate); err != nil {
		return PaymentRecord{}, err
	}
	if paidDate.Valid {
		if rec.PaidDate, err = parseDate(paidDate.String); err != nil {
			return PaymentRecord{}, err
		}
	}
	rec.ReceiptNumber = receipt.String
	rec.PaymentMethod = method.String
	return rec, nil
}

func (r *SQLiteRepository) installmentsForFee(ctx context.Context, feeID string) ([]core.Installment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, due_date, amount_paise, status, paid_date, receipt_no, payment_method
		 FROM installments WHERE fee_id = ? ORDER BY due_date, id`, feeID)
	if err != nil {
		return nil, fmt.Errorf("select installments: %w", err)
	}
	defer rows.Close()

	var insts []core.Installment
	for rows.Next() {
		var (
			inst                      core.Installment
			status, dueDate           string
			paidDate, receipt, method sql.NullString
		)
		if err := rows.Scan(&inst.ID, &dueDate, &inst.Amount.Paise, &status, &paidDate, &receipt, &method); err != nil {
			return nil, fmt.Errorf("scan installment: %w", err)
		}
		inst.Status = core.InstallmentStatus(status)
		if inst.DueDate, err = parseDate(dueDate); err != nil {
			return nil, err
		}
		if paidDate.Valid {
			if inst.PaidDate, err = parseDate(paidDate.String); err != nil {
				return nil, err
			}
		}
		inst.ReceiptNumber = receipt.String
		inst.PaymentMethod = method.String
		insts = append(insts, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate installments: %w", err)
	}
	return insts, nil
}

func (r *SQLiteRepository) expensesForFee(ctx context.Context, feeID string) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, expense_date, description, amount_paise, category, bill_no
		 FROM expenses WHERE fee_id = ? ORDER BY expense_date, created_at`, feeID)
	if err != nil {
		return nil, fmt.Errorf("select expenses: %w", err)
	}
	defer rows.Close()

	var exps []core.Expense
	for rows.Next() {
		var (
			e                 core.Expense
			category, expDate string
			bill              sql.NullString
		)
		if err := rows.Scan(&e.ID, &expDate, &e.Description, &e.Amount.Paise, &category, &bill); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		e.Category = core.ExpenseCategory(category)
		if e.Date, err = parseDate(expDate); err != nil {
			return nil, err
		}
		e.BillNumber = bill.String
		exps = append(exps, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return exps, nil
}

func parseDate(s string) (core.Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return core.Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return core.Date{Time: t}, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableDate(d core.Date) any {
	if d.IsZero() {
		return nil
	}
	return d.Format(dateLayout)
}
