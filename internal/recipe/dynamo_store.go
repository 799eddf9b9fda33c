package recipe

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoDBAPI is the subset of the DynamoDB client the store uses.
type DynamoDBAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// DynamoDBStore implements FavoriteStore on a single table with a PK/SK key schema.
// PK is the user's favorites collection and SK the recipe name.
type DynamoDBStore struct {
	DynamoDB  DynamoDBAPI
	TableName string
}

type favoriteItem struct {
	PK             string    `dynamodbav:"PK"`
	SK             string    `dynamodbav:"SK"`
	UserID         string    `dynamodbav:"userId"`
	Name           string    `dynamodbav:"name"`
	Ingredients    []string  `dynamodbav:"ingredients"`
	Instructions   string    `dynamodbav:"instructions"`
	RelevanceScore float64   `dynamodbav:"relevanceScore"`
	Source         string    `dynamodbav:"source,omitempty"`
	SavedAt        time.Time `dynamodbav:"savedAt"`
}

func NewDynamoDBStore(tableName string, client DynamoDBAPI) *DynamoDBStore {
	return &DynamoDBStore{DynamoDB: client, TableName: tableName}
}

func partitionKey(userID string) string {
	return fmt.Sprintf("users/%s/favorites", userID)
}

func itemKey(userID, name string) (map[string]types.AttributeValue, error) {
	pk, err := attributevalue.Marshal(partitionKey(userID))
	if err != nil {
		return nil, err
	}
	sk, err := attributevalue.Marshal(name)
	if err != nil {
		return nil, err
	}
	return map[string]types.AttributeValue{"PK": pk, "SK": sk}, nil
}

// SaveFavorite writes the item unconditionally, so a same-named favorite is replaced.
func (s *DynamoDBStore) SaveFavorite(ctx context.Context, userID string, fav *FavoriteRecipe) error {
	savedAt := fav.SavedAt
	if savedAt.IsZero() {
		savedAt = time.Now().UTC()
	}
	item, err := attributevalue.MarshalMap(favoriteItem{
		PK:             partitionKey(userID),
		SK:             fav.Name,
		UserID:         userID,
		Name:           fav.Name,
		Ingredients:    fav.Ingredients,
		Instructions:   fav.Instructions,
		RelevanceScore: fav.RelevanceScore,
		Source:         fav.Source,
		SavedAt:        savedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal favorite: %w", err)
	}
	_, err = s.DynamoDB.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.TableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to save favorite: %w", err)
	}
	return nil
}

func (s *DynamoDBStore) DeleteFavorite(ctx context.Context, userID, name string) error {
	key, err := itemKey(userID, name)
	if err != nil {
		return err
	}
	_, err = s.DynamoDB.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.TableName),
		Key:       key,
	})
	if err != nil {
		return fmt.Errorf("failed to delete favorite: %w", err)
	}
	return nil
}

// ListFavorites queries the user's partition, following pagination until it is exhausted.
func (s *DynamoDBStore) ListFavorites(ctx context.Context, userID string) ([]*FavoriteRecipe, error) {
	keyEx := expression.Key("PK").Equal(expression.Value(partitionKey(userID)))
	expr, err := expression.NewBuilder().WithKeyCondition(keyEx).Build()
	if err != nil {
		return nil, err
	}

	favorites := []*FavoriteRecipe{}
	var startKey map[string]types.AttributeValue
	for {
		output, err := s.DynamoDB.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(s.TableName),
			KeyConditionExpression:    expr.KeyCondition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ExclusiveStartKey:         startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list favorites: %w", err)
		}
		var items []favoriteItem
		if err := attributevalue.UnmarshalListOfMaps(output.Items, &items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal favorites: %w", err)
		}
		for _, item := range items {
			favorites = append(favorites, item.toFavorite())
		}
		if len(output.LastEvaluatedKey) == 0 {
			return favorites, nil
		}
		startKey = output.LastEvaluatedKey
	}
}

func (s *DynamoDBStore) GetFavorite(ctx context.Context, userID, name string) (*FavoriteRecipe, error) {
	key, err := itemKey(userID, name)
	if err != nil {
		return nil, err
	}
	response, err := s.DynamoDB.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.TableName),
		Key:       key,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get favorite: %w", err)
	}
	if response.Item == nil {
		return nil, nil
	}
	var item favoriteItem
	if err := attributevalue.UnmarshalMap(response.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal favorite: %w", err)
	}
	return item.toFavorite(), nil
}

func (i favoriteItem) toFavorite() *FavoriteRecipe {
	return &FavoriteRecipe{
		RecipeSuggestion: RecipeSuggestion{
			Name:           i.Name,
			Ingredients:    i.Ingredients,
			Instructions:   i.Instructions,
			RelevanceScore: i.RelevanceScore,
			Source:         i.Source,
		},
		UserID:  i.UserID,
		SavedAt: i.SavedAt,
	}
}
