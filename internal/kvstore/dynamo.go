package kvstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Table key attribute names.
const (
	dynamoOwnerAttr  = "userId"
	dynamoEntityAttr = "entity"
)

// DynamoConfig holds the table layout and connection settings.
type DynamoConfig struct {
	Table    string
	Index    string // GSI over gsi1pk/gsi1sk, projection ALL
	Region   string
	Endpoint string // optional, e.g. DynamoDB Local
}

// DynamoStore implements Store on a DynamoDB table.
type DynamoStore struct {
	client *dynamodb.Client
	table  string
	index  string
}

// NewDynamoStore creates a client using the default AWS credential chain.
func NewDynamoStore(ctx context.Context, cfg *DynamoConfig) (*DynamoStore, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return &DynamoStore{client: client, table: cfg.Table, index: cfg.Index}, nil
}

func dynamoKey(key Key) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		dynamoOwnerAttr:  &types.AttributeValueMemberS{Value: key.Owner},
		dynamoEntityAttr: &types.AttributeValueMemberS{Value: key.Entity},
	}
}

func toDynamoItem(item *Item) map[string]types.AttributeValue {
	av := dynamoKey(item.Key)
	for k, v := range item.Attrs {
		if v == "" {
			continue
		}
		av[k] = &types.AttributeValueMemberS{Value: v}
	}
	return av
}

func fromDynamoItem(av map[string]types.AttributeValue) Item {
	item := Item{Attrs: make(map[string]string, len(av))}
	for k, v := range av {
		var s string
		switch tv := v.(type) {
		case *types.AttributeValueMemberS:
			s = tv.Value
		case *types.AttributeValueMemberN:
			s = tv.Value
		case *types.AttributeValueMemberBOOL:
			s = strconv.FormatBool(tv.Value)
		default:
			continue
		}
		switch k {
		case dynamoOwnerAttr:
			item.Owner = s
		case dynamoEntityAttr:
			item.Entity = s
		default:
			item.Attrs[k] = s
		}
	}
	return item
}

func (s *DynamoStore) Get(ctx context.Context, key Key) (*Item, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            dynamoKey(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	if out.Item == nil {
		return nil, ErrNotFound
	}
	item := fromDynamoItem(out.Item)
	return &item, nil
}

func (s *DynamoStore) Put(ctx context.Context, item *Item) error {
	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      toDynamoItem(item),
	})
	if err != nil {
		return fmt.Errorf("failed to put item: %w", err)
	}
	return nil
}

// ConditionalUpdate builds one UpdateItem call whose ConditionExpression
// requires the item to exist and every cond attribute to match.
func (s *DynamoStore) ConditionalUpdate(ctx context.Context, key Key, set, cond map[string]string) error {
	names := map[string]string{"#pk": dynamoOwnerAttr}
	values := map[string]types.AttributeValue{}

	var setParts, removeParts []string
	for i, k := range sortedKeys(set) {
		n := "#s" + strconv.Itoa(i)
		names[n] = k
		if set[k] == "" {
			removeParts = append(removeParts, n)
			continue
		}
		v := ":s" + strconv.Itoa(i)
		values[v] = &types.AttributeValueMemberS{Value: set[k]}
		setParts = append(setParts, n+" = "+v)
	}

	var update strings.Builder
	if len(setParts) > 0 {
		update.WriteString("SET " + strings.Join(setParts, ", "))
	}
	if len(removeParts) > 0 {
		if update.Len() > 0 {
			update.WriteString(" ")
		}
		update.WriteString("REMOVE " + strings.Join(removeParts, ", "))
	}
	if update.Len() == 0 {
		return nil
	}

	condParts := []string{"attribute_exists(#pk)"}
	for i, k := range sortedKeys(cond) {
		n := "#c" + strconv.Itoa(i)
		names[n] = k
		if cond[k] == "" {
			condParts = append(condParts, "attribute_not_exists("+n+")")
			continue
		}
		v := ":c" + strconv.Itoa(i)
		values[v] = &types.AttributeValueMemberS{Value: cond[k]}
		condParts = append(condParts, n+" = "+v)
	}

	input := &dynamodb.UpdateItemInput{
		TableName:                aws.String(s.table),
		Key:                      dynamoKey(key),
		UpdateExpression:         aws.String(update.String()),
		ConditionExpression:      aws.String(strings.Join(condParts, " AND ")),
		ExpressionAttributeNames: names,
	}
	if len(values) > 0 {
		input.ExpressionAttributeValues = values
	}

	if _, err := s.client.UpdateItem(ctx, input); err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrConditionFailed
		}
		return fmt.Errorf("failed to update item: %w", err)
	}
	return nil
}

func (s *DynamoStore) Query(ctx context.Context, q QueryInput) ([]Item, error) {
	names := map[string]string{"#pk": AttrIndexPK}
	values := map[string]types.AttributeValue{
		":pk": &types.AttributeValueMemberS{Value: q.Partition},
	}
	keyCond := "#pk = :pk"
	if q.SortPrefix != "" {
		names["#sk"] = AttrIndexSK
		values[":prefix"] = &types.AttributeValueMemberS{Value: q.SortPrefix}
		keyCond += " AND begins_with(#sk, :prefix)"
	}

	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(s.table),
		IndexName:                 aws.String(s.index),
		KeyConditionExpression:    aws.String(keyCond),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ScanIndexForward:          aws.Bool(q.Ascending),
		Limit:                     aws.Int32(int32(limitOrDefault(q.Limit))),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query index %s: %w", s.index, err)
	}

	items := make([]Item, 0, len(out.Items))
	for _, av := range out.Items {
		items = append(items, fromDynamoItem(av))
	}
	return items, nil
}

func (s *DynamoStore) Close() error { return nil }

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
