package dynamodb

import (
	"context"
	"errors"
	"testing"

	pkgerrors "comments-api/pkg/errors"
	"comments-api/pkg/testutil"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockAPI struct {
	mock.Mock
}

func (m *mockAPI) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.GetItemOutput)
	return out, args.Error(1)
}

func (m *mockAPI) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.PutItemOutput)
	return out, args.Error(1)
}

func (m *mockAPI) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.UpdateItemOutput)
	return out, args.Error(1)
}

func (m *mockAPI) DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.DeleteItemOutput)
	return out, args.Error(1)
}

func (m *mockAPI) Query(ctx context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.QueryOutput)
	return out, args.Error(1)
}

func (m *mockAPI) TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.TransactWriteItemsOutput)
	return out, args.Error(1)
}

func newTestRepo() (*CommentRepository, *mockAPI) {
	api := new(mockAPI)
	return NewCommentRepository(api, "comments", zap.NewNop()), api
}

func TestCommentItem_RoundTrip(t *testing.T) {
	rec := testutil.NewCommentBuilder().WithReplyTo("2b1f3c4e-8a1d-4c8e-9a55-0f6c2d9e1a11").MustRecord(t)

	item := newCommentItem(rec)
	av, err := attributevalue.MarshalMap(item)
	require.NoError(t, err)
	var back commentItem
	require.NoError(t, attributevalue.UnmarshalMap(av, &back))

	assert.Equal(t, rec, back.record())
	assert.Equal(t, "COMMENT#"+rec.ID, item.PK)
	assert.Equal(t, "POST#"+rec.PostID, item.GSI1PK)
	assert.Equal(t, "REPLYTO#"+rec.ReplyToID, item.GSI2PK)
	assert.Equal(t, item.GSI1SK, item.GSI2SK)
}

func TestCommentItem_TopLevelGoesUnderMain(t *testing.T) {
	rec := testutil.NewCommentBuilder().MustRecord(t)

	item := newCommentItem(rec)

	assert.Equal(t, mainThreadPK, item.GSI2PK)
}

func TestChronoSK_SortsByTime(t *testing.T) {
	assert.Less(t, chronoSK(999, "b"), chronoSK(1000, "a"))
	assert.Less(t, chronoSK(1000, "a"), chronoSK(1000, "b"))
}

func TestCommentRepository_InsertTopLevel(t *testing.T) {
	repo, api := newTestRepo()
	rec := testutil.NewCommentBuilder().MustRecord(t)
	api.On("PutItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.PutItemInput) bool {
		return aws.ToString(in.TableName) == "comments" && in.ConditionExpression != nil
	})).Return(&dynamodb.PutItemOutput{}, nil)

	stored, err := repo.Insert(context.Background(), rec)

	require.NoError(t, err)
	assert.Equal(t, rec, stored)
	api.AssertNotCalled(t, "TransactWriteItems", mock.Anything, mock.Anything)
}

func TestCommentRepository_InsertReplyUsesTransaction(t *testing.T) {
	repo, api := newTestRepo()
	rec := testutil.NewCommentBuilder().WithReplyTo("2b1f3c4e-8a1d-4c8e-9a55-0f6c2d9e1a11").MustRecord(t)
	api.On("TransactWriteItems", mock.Anything, mock.MatchedBy(func(in *dynamodb.TransactWriteItemsInput) bool {
		if len(in.TransactItems) != 2 || in.TransactItems[1].Update == nil {
			return false
		}
		pk := in.TransactItems[1].Update.Key["PK"].(*types.AttributeValueMemberS)
		return pk.Value == "COMMENT#"+rec.ReplyToID
	})).Return(&dynamodb.TransactWriteItemsOutput{}, nil)

	_, err := repo.Insert(context.Background(), rec)

	require.NoError(t, err)
	api.AssertExpectations(t)
}

func TestCommentRepository_InsertReplyMissingParent(t *testing.T) {
	repo, api := newTestRepo()
	rec := testutil.NewCommentBuilder().WithReplyTo("2b1f3c4e-8a1d-4c8e-9a55-0f6c2d9e1a11").MustRecord(t)
	api.On("TransactWriteItems", mock.Anything, mock.Anything).Return(nil, &types.TransactionCanceledException{
		CancellationReasons: []types.CancellationReason{
			{Code: aws.String("None")},
			{Code: aws.String("ConditionalCheckFailed")},
		},
	})

	_, err := repo.Insert(context.Background(), rec)

	assert.ErrorIs(t, err, pkgerrors.ErrParentNotFound)
}

func TestCommentRepository_InsertDuplicate(t *testing.T) {
	repo, api := newTestRepo()
	api.On("PutItem", mock.Anything, mock.Anything).Return(nil, &types.ConditionalCheckFailedException{})

	_, err := repo.Insert(context.Background(), testutil.NewCommentBuilder().MustRecord(t))

	assert.ErrorIs(t, err, pkgerrors.ErrDuplicateCommentID)
}

func TestCommentRepository_FindByID(t *testing.T) {
	repo, api := newTestRepo()
	rec := testutil.NewCommentBuilder().MustRecord(t)
	av, err := attributevalue.MarshalMap(newCommentItem(rec))
	require.NoError(t, err)
	api.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{Item: av}, nil).Once()
	api.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{}, nil)

	found, err := repo.FindByID(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec, found)

	_, err = repo.FindByID(context.Background(), rec.ID)
	assert.ErrorIs(t, err, pkgerrors.ErrCommentNotFound)
}

func TestCommentRepository_FindPaginates(t *testing.T) {
	repo, api := newTestRepo()
	a := testutil.NewCommentBuilder().MustRecord(t)
	b := testutil.NewCommentBuilder().WithPostID(a.PostID).MustRecord(t)
	avA, _ := attributevalue.MarshalMap(newCommentItem(a))
	avB, _ := attributevalue.MarshalMap(newCommentItem(b))
	lastKey := map[string]types.AttributeValue{"PK": &types.AttributeValueMemberS{Value: "COMMENT#" + a.ID}}

	api.On("Query", mock.Anything, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
		return in.ExclusiveStartKey == nil && aws.ToString(in.IndexName) == indexByPost
	})).Return(&dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{avA}, LastEvaluatedKey: lastKey}, nil)
	api.On("Query", mock.Anything, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
		return in.ExclusiveStartKey != nil
	})).Return(&dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{avB}}, nil)

	got, err := repo.Find(context.Background(), a.PostID)

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, a.ID, got[0].ID)
	assert.Equal(t, b.ID, got[1].ID)
}

func TestCommentRepository_UpdateMissing(t *testing.T) {
	repo, api := newTestRepo()
	api.On("UpdateItem", mock.Anything, mock.Anything).Return(nil, &types.ConditionalCheckFailedException{})

	_, err := repo.Update(context.Background(), testutil.NewCommentBuilder().MustRecord(t))

	assert.ErrorIs(t, err, pkgerrors.ErrCommentNotFound)
}

func stubCurrent(t *testing.T, api *mockAPI, item commentItem) {
	t.Helper()
	av, err := attributevalue.MarshalMap(item)
	require.NoError(t, err)
	api.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{Item: av}, nil)
}

func TestCommentRepository_RemoveIfNoRepliesMissing(t *testing.T) {
	repo, api := newTestRepo()
	api.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{}, nil)

	n, err := repo.RemoveIfNoReplies(context.Background(), "c1")

	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
	api.AssertNotCalled(t, "DeleteItem", mock.Anything, mock.Anything)
}

func TestCommentRepository_RemoveIfNoRepliesBlocked(t *testing.T) {
	repo, api := newTestRepo()
	item := newCommentItem(testutil.NewCommentBuilder().MustRecord(t))
	stubCurrent(t, api, item)
	api.On("DeleteItem", mock.Anything, mock.Anything).Return(nil, &types.ConditionalCheckFailedException{})

	n, err := repo.RemoveIfNoReplies(context.Background(), item.CommentID)

	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCommentRepository_RemoveWithReplies(t *testing.T) {
	repo, api := newTestRepo()
	item := newCommentItem(testutil.NewCommentBuilder().MustRecord(t))
	item.ReplyCount = 1
	stubCurrent(t, api, item)

	_, err := repo.Remove(context.Background(), item.CommentID)

	assert.ErrorIs(t, err, pkgerrors.ErrCommentHasReplies)
	api.AssertNotCalled(t, "DeleteItem", mock.Anything, mock.Anything)
}

func TestCommentRepository_RemoveReplyReleasesParentAtomically(t *testing.T) {
	repo, api := newTestRepo()
	rec := testutil.NewCommentBuilder().WithReplyTo("2b1f3c4e-8a1d-4c8e-9a55-0f6c2d9e1a11").MustRecord(t)
	stubCurrent(t, api, newCommentItem(rec))
	api.On("TransactWriteItems", mock.Anything, mock.MatchedBy(func(in *dynamodb.TransactWriteItemsInput) bool {
		if len(in.TransactItems) != 2 || in.TransactItems[0].Delete == nil || in.TransactItems[1].Update == nil {
			return false
		}
		leaf := in.TransactItems[0].Delete.Key["PK"].(*types.AttributeValueMemberS)
		parent := in.TransactItems[1].Update.Key["PK"].(*types.AttributeValueMemberS)
		return leaf.Value == "COMMENT#"+rec.ID && parent.Value == "COMMENT#"+rec.ReplyToID
	})).Return(&dynamodb.TransactWriteItemsOutput{}, nil)

	n, err := repo.Remove(context.Background(), rec.ID)

	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	api.AssertExpectations(t)
	api.AssertNotCalled(t, "DeleteItem", mock.Anything, mock.Anything)
	api.AssertNotCalled(t, "UpdateItem", mock.Anything, mock.Anything)
}

func TestCommentRepository_RemoveReplyFailureKeepsBothItems(t *testing.T) {
	repo, api := newTestRepo()
	rec := testutil.NewCommentBuilder().WithReplyTo("2b1f3c4e-8a1d-4c8e-9a55-0f6c2d9e1a11").MustRecord(t)
	stubCurrent(t, api, newCommentItem(rec))
	api.On("TransactWriteItems", mock.Anything, mock.Anything).Return(nil, errors.New("throttled"))

	n, err := repo.RemoveIfNoReplies(context.Background(), rec.ID)

	require.Error(t, err)
	assert.Equal(t, int64(0), n)
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeDatabase))
	api.AssertNotCalled(t, "DeleteItem", mock.Anything, mock.Anything)
}

func TestCommentRepository_RemoveReplyGainedReplies(t *testing.T) {
	repo, api := newTestRepo()
	rec := testutil.NewCommentBuilder().WithReplyTo("2b1f3c4e-8a1d-4c8e-9a55-0f6c2d9e1a11").MustRecord(t)
	stubCurrent(t, api, newCommentItem(rec))
	api.On("TransactWriteItems", mock.Anything, mock.Anything).Return(nil, &types.TransactionCanceledException{
		CancellationReasons: []types.CancellationReason{
			{
				Code: aws.String("ConditionalCheckFailed"),
				Item: map[string]types.AttributeValue{"PK": &types.AttributeValueMemberS{Value: "COMMENT#" + rec.ID}},
			},
			{Code: aws.String("None")},
		},
	})

	_, err := repo.Remove(context.Background(), rec.ID)

	assert.ErrorIs(t, err, pkgerrors.ErrCommentHasReplies)
}

func TestCommentRepository_StoreErrorsAreDatabaseErrors(t *testing.T) {
	repo, api := newTestRepo()
	api.On("GetItem", mock.Anything, mock.Anything).Return(nil, errors.New("timeout"))

	_, err := repo.FindByID(context.Background(), "c1")

	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeDatabase))
}
