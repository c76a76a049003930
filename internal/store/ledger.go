package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Account struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Balance   int64     `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
}

// InitialBalance is credited to every new account so the demo ledger
// has something to move around.
const InitialBalance int64 = 100

func (s *Store) CreateAccount(name string) (*Account, error) {
	a := &Account{
		ID:      uuid.New().String(),
		Name:    name,
		Balance: InitialBalance,
	}
	_, err := s.db.Exec(`
		INSERT INTO accounts (id, name, balance) VALUES (?, ?, ?)`,
		a.ID, a.Name, a.Balance)
	if err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	return a, nil
}

func (s *Store) GetAccount(id string) (*Account, error) {
	row := s.db.QueryRow(`
		SELECT id, name, balance, created_at FROM accounts WHERE id = ?`, id)
	return scanAccount(row)
}

// GetAccountByName resolves a recipient by display name. Returns
// (nil, nil) when no account matches.
func (s *Store) GetAccountByName(name string) (*Account, error) {
	row := s.db.QueryRow(`
		SELECT id, name, balance, created_at FROM accounts WHERE name = ? LIMIT 1`, name)
	return scanAccount(row)
}

func scanAccount(row *sql.Row) (*Account, error) {
	a := &Account{}
	err := row.Scan(&a.ID, &a.Name, &a.Balance, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan account: %w", err)
	}
	return a, nil
}

// Transfer moves amount between two accounts atomically, failing on
// unknown accounts or insufficient balance.
func (s *Store) Transfer(fromID, toID string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("transfer amount must be positive")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transfer: %w", err)
	}
	defer tx.Rollback()

	var balance int64
	err = tx.QueryRow(`SELECT balance FROM accounts WHERE id = ?`, fromID).Scan(&balance)
	if err == sql.ErrNoRows {
		return fmt.Errorf("unknown account: %s", fromID)
	}
	if err != nil {
		return fmt.Errorf("read balance: %w", err)
	}
	if balance < amount {
		return fmt.Errorf("insufficient balance: have %d, need %d", balance, amount)
	}

	res, err := tx.Exec(`UPDATE accounts SET balance = balance + ? WHERE id = ?`, amount, toID)
	if err != nil {
		return fmt.Errorf("credit account: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("unknown account: %s", toID)
	}

	if _, err := tx.Exec(`UPDATE accounts SET balance = balance - ? WHERE id = ?`, amount, fromID); err != nil {
		return fmt.Errorf("debit account: %w", err)
	}

	return tx.Commit()
}

type TopicMessage struct {
	ID        int64     `json:"id"`
	AccountID string    `json:"account_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Store) SaveTopicMessage(accountID, content string) error {
	_, err := s.db.Exec(`
		INSERT INTO topic_messages (account_id, content) VALUES (?, ?)`,
		accountID, content)
	if err != nil {
		return fmt.Errorf("save topic message: %w", err)
	}
	return nil
}

func (s *Store) GetTopicMessages(accountID string, limit int) ([]TopicMessage, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.Query(`
		SELECT id, account_id, content, created_at
		FROM topic_messages
		WHERE account_id = ?
		ORDER BY created_at DESC
		LIMIT ?`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("get topic messages: %w", err)
	}
	defer rows.Close()

	var msgs []TopicMessage
	for rows.Next() {
		var m TopicMessage
		if err := rows.Scan(&m.ID, &m.AccountID, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan topic message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
