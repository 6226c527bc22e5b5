package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/socialhub/backend/internal/db"
	"github.com/socialhub/backend/internal/models"
)

// PostgresUserRepository provides PostgreSQL-backed persistence for users.
type PostgresUserRepository struct {
	pool db.Pool
}

// NewPostgresUserRepository constructs a user repository backed by PostgreSQL.
func NewPostgresUserRepository(pool db.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

// Create persists a new user record.
func (r *PostgresUserRepository) Create(ctx context.Context, user models.User) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO users (id, username, email, password_hash, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `, user.ID, user.Username, user.Email, user.Password, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if isPgCode(err, pgUniqueViolation) {
			return ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// FindByID fetches a user by identifier.
func (r *PostgresUserRepository) FindByID(ctx context.Context, id string) (models.User, error) {
	return r.findOne(ctx, "id", id)
}

// FindByEmail fetches a user by their email address.
func (r *PostgresUserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	return r.findOne(ctx, "email", email)
}

// FindByUsername fetches a user by their unique username.
func (r *PostgresUserRepository) FindByUsername(ctx context.Context, username string) (models.User, error) {
	return r.findOne(ctx, "username", username)
}

func (r *PostgresUserRepository) findOne(ctx context.Context, column, value string) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	// column is always one of the fixed identifiers above.
	row := conn.QueryRow(ctx, `
        SELECT id, username, email, password_hash, created_at, updated_at
        FROM users
        WHERE `+column+` = $1
    `, value)

	var user models.User
	if err := row.Scan(&user.ID, &user.Username, &user.Email, &user.Password, &user.CreatedAt, &user.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("select user by %s: %w", column, err)
	}

	return user, nil
}

// FindManyByIDs loads every existing user among ids in a single query.
func (r *PostgresUserRepository) FindManyByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT id, username, email, password_hash, created_at, updated_at
        FROM users
        WHERE id = ANY($1)
    `, ids)
	if err != nil {
		return nil, fmt.Errorf("query users by id: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]models.User, len(ids))
	for rows.Next() {
		var user models.User
		if err := rows.Scan(&user.ID, &user.Username, &user.Email, &user.Password, &user.CreatedAt, &user.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		byID[user.ID] = user
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}

	return orderUsers(ids, byID), nil
}

// PostgresRelationRepository provides PostgreSQL-backed persistence for
// friendships and friend requests.
type PostgresRelationRepository struct {
	pool db.Pool
}

// NewPostgresRelationRepository constructs a relation repository backed by PostgreSQL.
func NewPostgresRelationRepository(pool db.Pool) *PostgresRelationRepository {
	return &PostgresRelationRepository{pool: pool}
}

// FriendIDs lists the user's friends in insertion order.
func (r *PostgresRelationRepository) FriendIDs(ctx context.Context, userID string) ([]string, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT friend_id
        FROM friendships
        WHERE user_id = $1
        ORDER BY seq
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("query friendships: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan friendship: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate friendships: %w", err)
	}

	return ids, nil
}

// AreFriends reports whether a friendship edge exists from userID to otherID.
func (r *PostgresRelationRepository) AreFriends(ctx context.Context, userID, otherID string) (bool, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var exists bool
	if err := conn.QueryRow(ctx, `
        SELECT EXISTS (SELECT 1 FROM friendships WHERE user_id = $1 AND friend_id = $2)
    `, userID, otherID).Scan(&exists); err != nil {
		return false, fmt.Errorf("select friendship: %w", err)
	}

	return exists, nil
}

// FindRequest returns the request row for the ordered pair.
func (r *PostgresRelationRepository) FindRequest(ctx context.Context, senderID, receiverID string) (models.FriendRequest, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.FriendRequest{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	request, err := scanRequest(conn.QueryRow(ctx, `
        SELECT id, sender_id, receiver_id, status, created_at, updated_at
        FROM friend_requests
        WHERE sender_id = $1 AND receiver_id = $2
    `, senderID, receiverID))
	if err != nil {
		return models.FriendRequest{}, wrapNoRows(err, "select friend request")
	}

	return request, nil
}

// CreateRequest persists a new friend request.
func (r *PostgresRelationRepository) CreateRequest(ctx context.Context, request models.FriendRequest) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO friend_requests (id, sender_id, receiver_id, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `, request.ID, request.SenderID, request.ReceiverID, request.Status, request.CreatedAt, request.UpdatedAt)
	if err != nil {
		return translateWriteError(err, "insert friend request")
	}

	return nil
}

// TransitionRequest updates the request status only if it still matches from.
func (r *PostgresRelationRepository) TransitionRequest(ctx context.Context, requestID, from, to string, at time.Time) (models.FriendRequest, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.FriendRequest{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	request, err := scanRequest(conn.QueryRow(ctx, `
        UPDATE friend_requests
        SET status = $3, updated_at = $4
        WHERE id = $1 AND status = $2
        RETURNING id, sender_id, receiver_id, status, created_at, updated_at
    `, requestID, from, to, at))
	if err != nil {
		return models.FriendRequest{}, wrapNoRows(err, "update friend request")
	}

	return request, nil
}

// AcceptRequest flips the pending request and writes both friendship edges atomically.
func (r *PostgresRelationRepository) AcceptRequest(ctx context.Context, senderID, receiverID string, at time.Time) (models.FriendRequest, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.FriendRequest{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return models.FriendRequest{}, fmt.Errorf("begin accept transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	request, err := scanRequest(tx.QueryRow(ctx, `
        UPDATE friend_requests
        SET status = 'accepted', updated_at = $3
        WHERE sender_id = $1 AND receiver_id = $2 AND status = 'pending'
        RETURNING id, sender_id, receiver_id, status, created_at, updated_at
    `, senderID, receiverID, at))
	if err != nil {
		return models.FriendRequest{}, wrapNoRows(err, "accept friend request")
	}

	if _, err := tx.Exec(ctx, `
        INSERT INTO friendships (user_id, friend_id, created_at)
        VALUES ($1, $2, $3), ($2, $1, $3)
    `, senderID, receiverID, at); err != nil {
		if isPgCode(err, pgUniqueViolation) {
			return models.FriendRequest{}, ErrConflict
		}
		return models.FriendRequest{}, fmt.Errorf("insert friendships: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return models.FriendRequest{}, fmt.Errorf("commit accept transaction: %w", err)
	}

	return request, nil
}

// DeletePendingRequest removes a request that is still pending.
func (r *PostgresRelationRepository) DeletePendingRequest(ctx context.Context, senderID, receiverID string) (models.FriendRequest, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.FriendRequest{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	request, err := scanRequest(conn.QueryRow(ctx, `
        DELETE FROM friend_requests
        WHERE sender_id = $1 AND receiver_id = $2 AND status = 'pending'
        RETURNING id, sender_id, receiver_id, status, created_at, updated_at
    `, senderID, receiverID))
	if err != nil {
		return models.FriendRequest{}, wrapNoRows(err, "delete friend request")
	}

	return request, nil
}

// ListPendingForReceiver returns incoming pending requests, oldest first.
func (r *PostgresRelationRepository) ListPendingForReceiver(ctx context.Context, receiverID string) ([]models.FriendRequest, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT id, sender_id, receiver_id, status, created_at, updated_at
        FROM friend_requests
        WHERE receiver_id = $1 AND status = 'pending'
        ORDER BY updated_at, id
    `, receiverID)
	if err != nil {
		return nil, fmt.Errorf("query friend requests: %w", err)
	}

	return collectRequests(rows)
}

// RemoveFriendship deletes both edges and any request rows between the pair.
func (r *PostgresRelationRepository) RemoveFriendship(ctx context.Context, userID, friendID string) ([]models.FriendRequest, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin unfriend transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
        DELETE FROM friendships
        WHERE (user_id = $1 AND friend_id = $2) OR (user_id = $2 AND friend_id = $1)
    `, userID, friendID)
	if err != nil {
		return nil, fmt.Errorf("delete friendships: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}

	rows, err := tx.Query(ctx, `
        DELETE FROM friend_requests
        WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1)
        RETURNING id, sender_id, receiver_id, status, created_at, updated_at
    `, userID, friendID)
	if err != nil {
		return nil, fmt.Errorf("delete friend requests: %w", err)
	}
	removed, err := collectRequests(rows)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit unfriend transaction: %w", err)
	}

	return removed, nil
}

func scanRequest(row pgx.Row) (models.FriendRequest, error) {
	var req models.FriendRequest
	if err := row.Scan(&req.ID, &req.SenderID, &req.ReceiverID, &req.Status, &req.CreatedAt, &req.UpdatedAt); err != nil {
		return models.FriendRequest{}, err
	}
	req.CreatedAt = req.CreatedAt.UTC()
	req.UpdatedAt = req.UpdatedAt.UTC()
	return req, nil
}

func collectRequests(rows pgx.Rows) ([]models.FriendRequest, error) {
	defer rows.Close()

	var requests []models.FriendRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan friend request: %w", err)
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate friend requests: %w", err)
	}

	return requests, nil
}

func orderUsers(ids []string, byID map[string]models.User) []models.User {
	users := make([]models.User, 0, len(byID))
	for _, id := range ids {
		if user, ok := byID[id]; ok {
			users = append(users, user)
		}
	}
	return users
}

var _ UserRepository = (*PostgresUserRepository)(nil)
var _ RelationRepository = (*PostgresRelationRepository)(nil)
