package sqlstore

import (
	"context"
	"database/sql"
	"errors"

	"comments-api/domain/core/entities"
	pkgerrors "comments-api/pkg/errors"

	"go.uber.org/zap"
)

const commentColumns = `id, author, text, post_id, reply_to_id, ip, browser, referrer, created_on, modified_on, published, hash`

// CommentRepository stores comments in one table. reply_to_id is a foreign
// key, so the database itself refuses replies to missing comments and
// deletes that would orphan a reply.
type CommentRepository struct {
	db      *sql.DB
	dialect Dialect
	logger  *zap.Logger
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(db *sql.DB, dialect Dialect, logger *zap.Logger) *CommentRepository {
	return &CommentRepository{db: db, dialect: dialect, logger: logger}
}

func (r *CommentRepository) Insert(ctx context.Context, rec *entities.Record) (*entities.Record, error) {
	_, err := r.db.ExecContext(ctx, r.dialect.rebind(
		`INSERT INTO comments (`+commentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		rec.ID, rec.Author, rec.Text, rec.PostID, nullable(rec.ReplyToID),
		rec.Source.IP, rec.Source.Browser, rec.Source.Referrer,
		rec.CreatedOn, rec.ModifiedOn, rec.Published, rec.Hash,
	)
	switch {
	case err == nil:
		return rec.Clone(), nil
	case r.dialect.isForeignKeyViolation(err):
		return nil, pkgerrors.ErrParentNotFound.WithDetail("replyToId", rec.ReplyToID)
	case r.dialect.isUniqueViolation(err):
		return nil, pkgerrors.ErrDuplicateCommentID.WithDetail("id", rec.ID)
	default:
		r.logger.Error("Failed to insert comment", zap.String("commentID", rec.ID), zap.Error(err))
		return nil, pkgerrors.NewDatabaseError("insert", err)
	}
}

func (r *CommentRepository) FindByID(ctx context.Context, id string) (*entities.Record, error) {
	row := r.db.QueryRowContext(ctx, r.dialect.rebind(
		`SELECT `+commentColumns+` FROM comments WHERE id = ?`), id)
	rec, err := scanComment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrCommentNotFound.WithDetail("id", id)
	}
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("find by id", err)
	}
	return rec, nil
}

func (r *CommentRepository) Find(ctx context.Context, postID string) ([]*entities.Record, error) {
	return r.list(ctx, "find", `post_id = ?`, postID)
}

func (r *CommentRepository) FindMainComments(ctx context.Context) ([]*entities.Record, error) {
	return r.list(ctx, "find main comments", `reply_to_id IS NULL`)
}

func (r *CommentRepository) FindReplies(ctx context.Context, commentID string) ([]*entities.Record, error) {
	return r.list(ctx, "find replies", `reply_to_id = ?`, commentID)
}

func (r *CommentRepository) list(ctx context.Context, op, where string, args ...interface{}) ([]*entities.Record, error) {
	query := `SELECT ` + commentColumns + ` FROM comments WHERE ` + where +
		` ORDER BY created_on, ` + r.dialect.tieBreak
	rows, err := r.db.QueryContext(ctx, r.dialect.rebind(query), args...)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError(op, err)
	}
	defer rows.Close()

	records := make([]*entities.Record, 0)
	for rows.Next() {
		rec, err := scanComment(rows)
		if err != nil {
			return nil, pkgerrors.NewDatabaseError(op, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.NewDatabaseError(op, err)
	}
	return records, nil
}

func (r *CommentRepository) Update(ctx context.Context, rec *entities.Record) (*entities.Record, error) {
	res, err := r.db.ExecContext(ctx, r.dialect.rebind(
		`UPDATE comments SET author = ?, text = ?, published = ?, modified_on = ?, hash = ? WHERE id = ?`),
		rec.Author, rec.Text, rec.Published, rec.ModifiedOn, rec.Hash, rec.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update comment", zap.String("commentID", rec.ID), zap.Error(err))
		return nil, pkgerrors.NewDatabaseError("update", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("update", err)
	}
	if n == 0 {
		return nil, pkgerrors.ErrCommentNotFound.WithDetail("id", rec.ID)
	}
	return r.FindByID(ctx, rec.ID)
}

// Remove deletes id. The foreign key refuses to delete a comment that still
// has replies.
func (r *CommentRepository) Remove(ctx context.Context, id string) (int64, error) {
	n, err := r.exec(ctx, "delete", `DELETE FROM comments WHERE id = ?`, id)
	if r.dialect.isForeignKeyViolation(err) {
		return 0, pkgerrors.ErrCommentHasReplies.WithDetail("id", id)
	}
	return n, err
}

// RemoveIfNoReplies deletes id only while nothing replies to it. A reply
// committed between the NOT EXISTS check and the delete trips the foreign
// key, which is reported as nothing deleted.
func (r *CommentRepository) RemoveIfNoReplies(ctx context.Context, id string) (int64, error) {
	n, err := r.exec(ctx, "conditional delete",
		`DELETE FROM comments WHERE id = ? AND NOT EXISTS (SELECT 1 FROM comments WHERE reply_to_id = ?)`,
		id, id)
	if r.dialect.isForeignKeyViolation(err) {
		return 0, nil
	}
	return n, err
}

func (r *CommentRepository) exec(ctx context.Context, op, query string, args ...interface{}) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.dialect.rebind(query), args...)
	if err != nil {
		if !r.dialect.isForeignKeyViolation(err) {
			r.logger.Error("Statement failed", zap.String("op", op), zap.Error(err))
			return 0, pkgerrors.NewDatabaseError(op, err)
		}
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, pkgerrors.NewDatabaseError(op, err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanComment(s scanner) (*entities.Record, error) {
	var (
		rec     entities.Record
		replyTo sql.NullString
	)
	err := s.Scan(
		&rec.ID, &rec.Author, &rec.Text, &rec.PostID, &replyTo,
		&rec.Source.IP, &rec.Source.Browser, &rec.Source.Referrer,
		&rec.CreatedOn, &rec.ModifiedOn, &rec.Published, &rec.Hash,
	)
	if err != nil {
		return nil, err
	}
	rec.ReplyToID = replyTo.String
	return &rec, nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
