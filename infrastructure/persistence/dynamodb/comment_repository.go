package dynamodb

import (
	"context"
	"errors"
	"fmt"

	"comments-api/domain/core/entities"
	pkgerrors "comments-api/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// API is the subset of the DynamoDB client the repository needs.
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// CommentRepository stores comments in a single table. Every comment keeps a
// ReplyCount that replies increment inside the same transaction that stores
// them, so a conditional delete on ReplyCount cannot orphan a reply.
type CommentRepository struct {
	client    API
	tableName string
	logger    *zap.Logger
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(client API, tableName string, logger *zap.Logger) *CommentRepository {
	return &CommentRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

func (r *CommentRepository) key(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: commentPK(id)},
		"SK": &types.AttributeValueMemberS{Value: metadataSK},
	}
}

// Insert stores rec. A reply is written in a transaction that also bumps the
// parent's ReplyCount, conditioned on the parent existing.
func (r *CommentRepository) Insert(ctx context.Context, rec *entities.Record) (*entities.Record, error) {
	av, err := attributevalue.MarshalMap(newCommentItem(rec))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal comment: %w", err)
	}

	notExists, err := expression.NewBuilder().
		WithCondition(expression.AttributeNotExists(expression.Name("PK"))).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build condition: %w", err)
	}

	if rec.ReplyToID == "" {
		_, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName:                 aws.String(r.tableName),
			Item:                      av,
			ConditionExpression:       notExists.Condition(),
			ExpressionAttributeNames:  notExists.Names(),
			ExpressionAttributeValues: notExists.Values(),
		})
		if err != nil {
			var ccf *types.ConditionalCheckFailedException
			if errors.As(err, &ccf) {
				return nil, duplicateComment(rec.ID)
			}
			r.logger.Error("Failed to put comment", zap.String("commentID", rec.ID), zap.Error(err))
			return nil, pkgerrors.NewDatabaseError("insert", err)
		}
		return rec.Clone(), nil
	}

	bump, err := expression.NewBuilder().
		WithUpdate(expression.Add(expression.Name("ReplyCount"), expression.Value(1))).
		WithCondition(expression.AttributeExists(expression.Name("PK"))).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build parent update: %w", err)
	}

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName:                 aws.String(r.tableName),
					Item:                      av,
					ConditionExpression:       notExists.Condition(),
					ExpressionAttributeNames:  notExists.Names(),
					ExpressionAttributeValues: notExists.Values(),
				},
			},
			{
				Update: &types.Update{
					TableName:                 aws.String(r.tableName),
					Key:                       r.key(rec.ReplyToID),
					UpdateExpression:          bump.Update(),
					ConditionExpression:       bump.Condition(),
					ExpressionAttributeNames:  bump.Names(),
					ExpressionAttributeValues: bump.Values(),
				},
			},
		},
	})
	if err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) {
			switch {
			case conditionFailed(tce, 1):
				return nil, pkgerrors.ErrParentNotFound.WithDetail("replyToId", rec.ReplyToID)
			case conditionFailed(tce, 0):
				return nil, duplicateComment(rec.ID)
			}
		}
		r.logger.Error("Failed to insert reply",
			zap.String("commentID", rec.ID),
			zap.String("replyToID", rec.ReplyToID),
			zap.Error(err),
		)
		return nil, pkgerrors.NewDatabaseError("insert", err)
	}
	return rec.Clone(), nil
}

func (r *CommentRepository) FindByID(ctx context.Context, id string) (*entities.Record, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            r.key(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("find by id", err)
	}
	if len(out.Item) == 0 {
		return nil, pkgerrors.ErrCommentNotFound.WithDetail("id", id)
	}

	var item commentItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal comment: %w", err)
	}
	return item.record(), nil
}

func (r *CommentRepository) Find(ctx context.Context, postID string) ([]*entities.Record, error) {
	return r.queryIndex(ctx, indexByPost, "GSI1PK", postPK(postID))
}

func (r *CommentRepository) FindMainComments(ctx context.Context) ([]*entities.Record, error) {
	return r.queryIndex(ctx, indexByParent, "GSI2PK", mainThreadPK)
}

func (r *CommentRepository) FindReplies(ctx context.Context, commentID string) ([]*entities.Record, error) {
	return r.queryIndex(ctx, indexByParent, "GSI2PK", parentPK(commentID))
}

// queryIndex reads every page of one index partition in sort key order.
func (r *CommentRepository) queryIndex(ctx context.Context, index, pkName, pkValue string) ([]*entities.Record, error) {
	expr, err := expression.NewBuilder().
		WithKeyCondition(expression.Key(pkName).Equal(expression.Value(pkValue))).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build key condition: %w", err)
	}

	paginator := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(index),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(true),
	})

	records := make([]*entities.Record, 0)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, pkgerrors.NewDatabaseError("query "+index, err)
		}
		var items []commentItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal comments: %w", err)
		}
		for _, item := range items {
			records = append(records, item.record())
		}
	}
	return records, nil
}

// Update rewrites the mutable attributes, leaving keys and ReplyCount alone.
func (r *CommentRepository) Update(ctx context.Context, rec *entities.Record) (*entities.Record, error) {
	update := expression.Set(expression.Name("Author"), expression.Value(rec.Author)).
		Set(expression.Name("Text"), expression.Value(rec.Text)).
		Set(expression.Name("Published"), expression.Value(rec.Published)).
		Set(expression.Name("ModifiedOn"), expression.Value(rec.ModifiedOn)).
		Set(expression.Name("Hash"), expression.Value(rec.Hash))
	expr, err := expression.NewBuilder().
		WithUpdate(update).
		WithCondition(expression.AttributeExists(expression.Name("PK"))).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build update: %w", err)
	}

	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       r.key(rec.ID),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return nil, pkgerrors.ErrCommentNotFound.WithDetail("id", rec.ID)
		}
		r.logger.Error("Failed to update comment", zap.String("commentID", rec.ID), zap.Error(err))
		return nil, pkgerrors.NewDatabaseError("update", err)
	}

	var item commentItem
	if err := attributevalue.UnmarshalMap(out.Attributes, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal comment: %w", err)
	}
	return item.record(), nil
}

// Remove deletes id unless it still has replies.
func (r *CommentRepository) Remove(ctx context.Context, id string) (int64, error) {
	n, blocked, err := r.deleteLeaf(ctx, id)
	if err != nil {
		return 0, err
	}
	if blocked {
		return 0, pkgerrors.ErrCommentHasReplies.WithDetail("id", id)
	}
	return n, nil
}

func (r *CommentRepository) RemoveIfNoReplies(ctx context.Context, id string) (int64, error) {
	n, _, err := r.deleteLeaf(ctx, id)
	return n, err
}

// deleteLeaf deletes id while its ReplyCount is zero. A reply is deleted in
// the same transaction that releases its slot in the parent's ReplyCount, so
// the counter never overstates. blocked reports that the item exists but has
// replies.
func (r *CommentRepository) deleteLeaf(ctx context.Context, id string) (n int64, blocked bool, err error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            r.key(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return 0, false, pkgerrors.NewDatabaseError("delete", err)
	}
	if len(out.Item) == 0 {
		return 0, false, nil
	}
	var current commentItem
	if err := attributevalue.UnmarshalMap(out.Item, &current); err != nil {
		return 0, false, fmt.Errorf("failed to unmarshal comment: %w", err)
	}
	if current.ReplyCount > 0 {
		return 0, true, nil
	}
	if current.ReplyToID == "" {
		return r.deleteItem(ctx, id)
	}

	leaf, err := expression.NewBuilder().
		WithCondition(noReplies().And(expression.Name("ReplyToID").Equal(expression.Value(current.ReplyToID)))).
		Build()
	if err != nil {
		return 0, false, fmt.Errorf("failed to build condition: %w", err)
	}
	release, err := expression.NewBuilder().
		WithUpdate(expression.Add(expression.Name("ReplyCount"), expression.Value(-1))).
		WithCondition(expression.AttributeExists(expression.Name("PK"))).
		Build()
	if err != nil {
		return 0, false, fmt.Errorf("failed to build reply release: %w", err)
	}

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Delete: &types.Delete{
					TableName:                           aws.String(r.tableName),
					Key:                                 r.key(id),
					ConditionExpression:                 leaf.Condition(),
					ExpressionAttributeNames:            leaf.Names(),
					ExpressionAttributeValues:           leaf.Values(),
					ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
				},
			},
			{
				Update: &types.Update{
					TableName:                 aws.String(r.tableName),
					Key:                       r.key(current.ReplyToID),
					UpdateExpression:          release.Update(),
					ConditionExpression:       release.Condition(),
					ExpressionAttributeNames:  release.Names(),
					ExpressionAttributeValues: release.Values(),
				},
			},
		},
	})
	if err == nil {
		return 1, false, nil
	}

	var tce *types.TransactionCanceledException
	if errors.As(err, &tce) {
		switch {
		case conditionFailed(tce, 0):
			return 0, len(tce.CancellationReasons[0].Item) > 0, nil
		case conditionFailed(tce, 1):
			// Parent already gone; nothing left to release.
			return r.deleteItem(ctx, id)
		}
	}
	r.logger.Error("Failed to delete reply",
		zap.String("commentID", id),
		zap.String("replyToID", current.ReplyToID),
		zap.Error(err),
	)
	return 0, false, pkgerrors.NewDatabaseError("delete", err)
}

// deleteItem deletes a comment that releases no parent slot.
func (r *CommentRepository) deleteItem(ctx context.Context, id string) (int64, bool, error) {
	expr, err := expression.NewBuilder().WithCondition(noReplies()).Build()
	if err != nil {
		return 0, false, fmt.Errorf("failed to build condition: %w", err)
	}

	_, err = r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                           aws.String(r.tableName),
		Key:                                 r.key(id),
		ConditionExpression:                 expr.Condition(),
		ExpressionAttributeNames:            expr.Names(),
		ExpressionAttributeValues:           expr.Values(),
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return 0, len(ccf.Item) > 0, nil
		}
		r.logger.Error("Failed to delete comment", zap.String("commentID", id), zap.Error(err))
		return 0, false, pkgerrors.NewDatabaseError("delete", err)
	}
	return 1, false, nil
}

func noReplies() expression.ConditionBuilder {
	return expression.AttributeExists(expression.Name("PK")).And(
		expression.Or(
			expression.AttributeNotExists(expression.Name("ReplyCount")),
			expression.Name("ReplyCount").LessThanEqual(expression.Value(0)),
		),
	)
}

func conditionFailed(tce *types.TransactionCanceledException, index int) bool {
	if index >= len(tce.CancellationReasons) {
		return false
	}
	return aws.ToString(tce.CancellationReasons[index].Code) == "ConditionalCheckFailed"
}

func duplicateComment(id string) error {
	return pkgerrors.ErrDuplicateCommentID.WithDetail("id", id)
}
