package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/expression"

	"github.com/moodmate/moodmate-backend/internal/config"
	"github.com/moodmate/moodmate-backend/internal/models"
)

// tableSchema describes the key layout of one DynamoDB table
type tableSchema struct {
	name     string
	hashKey  string
	rangeKey string
}

// DynamoDBStorage implements Storage interface using AWS DynamoDB
type DynamoDBStorage struct {
	client *dynamodb.DynamoDB
	tables config.TableConfig
}

// NewDynamoDBStorage creates a new DynamoDB storage instance
func NewDynamoDBStorage(ctx context.Context, cfg config.StorageConfig) (*DynamoDBStorage, error) {
	awsConfig := &aws.Config{
		Region:     aws.String(cfg.Region),
		MaxRetries: aws.Int(0),
	}

	// For local testing with DynamoDB Local
	if cfg.Endpoint != "" {
		awsConfig.Endpoint = aws.String(cfg.Endpoint)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	storage := &DynamoDBStorage{
		client: dynamodb.New(sess),
		tables: cfg.Tables,
	}

	for _, schema := range storage.schemas() {
		if err := storage.ensureTable(ctx, schema); err != nil {
			return nil, fmt.Errorf("failed to ensure table %s exists: %w", schema.name, err)
		}
	}

	return storage, nil
}

func (d *DynamoDBStorage) schemas() []tableSchema {
	return []tableSchema{
		{name: d.tables.RiskAnalysis, hashKey: "tweet_id"},
		{name: d.tables.HabitProgress, hashKey: "user_id", rangeKey: "habit_id"},
		{name: d.tables.Users, hashKey: "username"},
		{name: d.tables.EmotionLogs, hashKey: "user_id", rangeKey: "timestamp"},
		{name: d.tables.HealthData, hashKey: "user_id", rangeKey: "date"},
	}
}

// ensureTable creates the DynamoDB table if it doesn't exist
func (d *DynamoDBStorage) ensureTable(ctx context.Context, schema tableSchema) error {
	_, err := d.client.DescribeTableWithContext(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(schema.name),
	})
	if err == nil {
		return nil
	}

	keySchema := []*dynamodb.KeySchemaElement{
		{AttributeName: aws.String(schema.hashKey), KeyType: aws.String(dynamodb.KeyTypeHash)},
	}
	attributes := []*dynamodb.AttributeDefinition{
		{AttributeName: aws.String(schema.hashKey), AttributeType: aws.String(dynamodb.ScalarAttributeTypeS)},
	}
	if schema.rangeKey != "" {
		keySchema = append(keySchema, &dynamodb.KeySchemaElement{
			AttributeName: aws.String(schema.rangeKey), KeyType: aws.String(dynamodb.KeyTypeRange),
		})
		attributes = append(attributes, &dynamodb.AttributeDefinition{
			AttributeName: aws.String(schema.rangeKey), AttributeType: aws.String(dynamodb.ScalarAttributeTypeS),
		})
	}

	_, err = d.client.CreateTableWithContext(ctx, &dynamodb.CreateTableInput{
		TableName:            aws.String(schema.name),
		KeySchema:            keySchema,
		AttributeDefinitions: attributes,
		BillingMode:          aws.String(dynamodb.BillingModePayPerRequest),
	})
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	// Wait for table to be created
	return d.client.WaitUntilTableExistsWithContext(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(schema.name),
	})
}

// GetRiskRecord retrieves the stored analysis for a post
func (d *DynamoDBStorage) GetRiskRecord(ctx context.Context, postID string) (*models.RiskRecord, error) {
	result, err := d.client.GetItemWithContext(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.tables.RiskAnalysis),
		Key: map[string]*dynamodb.AttributeValue{
			"tweet_id": {S: aws.String(postID)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get risk record %s: %w", postID, err)
	}

	if result.Item == nil {
		return nil, nil
	}

	var record models.RiskRecord
	if err := dynamodbattribute.UnmarshalMap(result.Item, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal risk record: %w", err)
	}

	return &record, nil
}

// PutRiskRecordIfAbsent stores the record unless one already exists for the post id.
// The existence check is a condition on the put itself.
func (d *DynamoDBStorage) PutRiskRecordIfAbsent(ctx context.Context, record models.RiskRecord) (bool, error) {
	item, err := dynamodbattribute.MarshalMap(record)
	if err != nil {
		return false, fmt.Errorf("failed to marshal risk record %s: %w", record.PostID, err)
	}

	cond := expression.AttributeNotExists(expression.Name("tweet_id"))
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return false, fmt.Errorf("failed to build condition: %w", err)
	}

	_, err = d.client.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(d.tables.RiskAnalysis),
		Item:                     item,
		ConditionExpression:      expr.Condition(),
		ExpressionAttributeNames: expr.Names(),
	})
	if isConditionalCheckFailed(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to store risk record %s: %w", record.PostID, err)
	}

	return true, nil
}

// ListRiskRecords scans every stored analysis
func (d *DynamoDBStorage) ListRiskRecords(ctx context.Context) ([]models.RiskRecord, error) {
	var records []models.RiskRecord
	err := d.scanAll(ctx, &dynamodb.ScanInput{TableName: aws.String(d.tables.RiskAnalysis)}, func(items []map[string]*dynamodb.AttributeValue) error {
		var page []models.RiskRecord
		if err := dynamodbattribute.UnmarshalListOfMaps(items, &page); err != nil {
			return fmt.Errorf("failed to unmarshal risk records: %w", err)
		}
		records = append(records, page...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// PutHabit stores a habit, replacing any previous version
func (d *DynamoDBStorage) PutHabit(ctx context.Context, habit models.Habit) error {
	item, err := dynamodbattribute.MarshalMap(habit)
	if err != nil {
		return fmt.Errorf("failed to marshal habit %s: %w", habit.HabitID, err)
	}

	_, err = d.client.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.tables.HabitProgress),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to store habit %s: %w", habit.HabitID, err)
	}
	return nil
}

// GetHabit retrieves one habit by its composite key
func (d *DynamoDBStorage) GetHabit(ctx context.Context, userID, habitID string) (*models.Habit, error) {
	result, err := d.client.GetItemWithContext(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.tables.HabitProgress),
		Key:       habitKey(userID, habitID),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get habit %s: %w", habitID, err)
	}

	if result.Item == nil {
		return nil, nil
	}

	var habit models.Habit
	if err := dynamodbattribute.UnmarshalMap(result.Item, &habit); err != nil {
		return nil, fmt.Errorf("failed to unmarshal habit: %w", err)
	}
	return &habit, nil
}

// ListHabits queries a user's habits, or scans every habit when userID is empty
func (d *DynamoDBStorage) ListHabits(ctx context.Context, userID string) ([]models.Habit, error) {
	var habits []models.Habit
	collect := func(items []map[string]*dynamodb.AttributeValue) error {
		var page []models.Habit
		if err := dynamodbattribute.UnmarshalListOfMaps(items, &page); err != nil {
			return fmt.Errorf("failed to unmarshal habits: %w", err)
		}
		habits = append(habits, page...)
		return nil
	}

	if userID == "" {
		if err := d.scanAll(ctx, &dynamodb.ScanInput{TableName: aws.String(d.tables.HabitProgress)}, collect); err != nil {
			return nil, err
		}
		return habits, nil
	}

	keyCond := expression.Key("user_id").Equal(expression.Value(userID))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build key condition: %w", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(d.tables.HabitProgress),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}

	var pageErr error
	err = d.client.QueryPagesWithContext(ctx, input, func(page *dynamodb.QueryOutput, lastPage bool) bool {
		pageErr = collect(page.Items)
		return pageErr == nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query habits for user %s: %w", userID, err)
	}
	if pageErr != nil {
		return nil, pageErr
	}
	return habits, nil
}

// UpdateHabitProgress writes the streak fields in a single conditional update
func (d *DynamoDBStorage) UpdateHabitProgress(ctx context.Context, userID, habitID string, streak, level int, lastCompleted string) error {
	update := expression.
		Set(expression.Name("streak_days"), expression.Value(streak)).
		Set(expression.Name("level"), expression.Value(level)).
		Set(expression.Name("last_completed"), expression.Value(lastCompleted))

	return d.updateHabit(ctx, userID, habitID, update)
}

// SetHabitLastCompleted marks a habit as completed on the given date
func (d *DynamoDBStorage) SetHabitLastCompleted(ctx context.Context, userID, habitID, date string) error {
	update := expression.Set(expression.Name("last_completed"), expression.Value(date))
	return d.updateHabit(ctx, userID, habitID, update)
}

func (d *DynamoDBStorage) updateHabit(ctx context.Context, userID, habitID string, update expression.UpdateBuilder) error {
	cond := expression.AttributeExists(expression.Name("habit_id"))
	expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(cond).Build()
	if err != nil {
		return fmt.Errorf("failed to build habit update: %w", err)
	}

	_, err = d.client.UpdateItemWithContext(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(d.tables.HabitProgress),
		Key:                       habitKey(userID, habitID),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if isConditionalCheckFailed(err) {
		return models.ErrHabitNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update habit %s: %w", habitID, err)
	}
	return nil
}

// PutUser stores a new account
func (d *DynamoDBStorage) PutUser(ctx context.Context, user models.UserAccount) error {
	item, err := dynamodbattribute.MarshalMap(user)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}

	_, err = d.client.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.tables.Users),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to store user %s: %w", user.Username, err)
	}
	return nil
}

// FindUserByEmail scans the accounts table filtering on email
func (d *DynamoDBStorage) FindUserByEmail(ctx context.Context, email string) (*models.UserAccount, error) {
	filter := expression.Name("email").Equal(expression.Value(email))
	expr, err := expression.NewBuilder().WithFilter(filter).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build filter: %w", err)
	}

	input := &dynamodb.ScanInput{
		TableName:                 aws.String(d.tables.Users),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}

	var found *models.UserAccount
	err = d.scanAll(ctx, input, func(items []map[string]*dynamodb.AttributeValue) error {
		if found != nil || len(items) == 0 {
			return nil
		}
		var user models.UserAccount
		if err := dynamodbattribute.UnmarshalMap(items[0], &user); err != nil {
			return fmt.Errorf("failed to unmarshal user: %w", err)
		}
		found = &user
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// PutEmotionLog stores one emotion log entry
func (d *DynamoDBStorage) PutEmotionLog(ctx context.Context, entry models.EmotionLog) error {
	return d.putItem(ctx, d.tables.EmotionLogs, entry)
}

// PutHealthData stores one day of health metrics
func (d *DynamoDBStorage) PutHealthData(ctx context.Context, data models.HealthData) error {
	return d.putItem(ctx, d.tables.HealthData, data)
}

func (d *DynamoDBStorage) putItem(ctx context.Context, table string, value interface{}) error {
	item, err := dynamodbattribute.MarshalMap(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s item: %w", table, err)
	}

	_, err = d.client.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to store %s item: %w", table, err)
	}
	return nil
}

// scanAll walks every page of a scan, handing items to fn
func (d *DynamoDBStorage) scanAll(ctx context.Context, input *dynamodb.ScanInput, fn func([]map[string]*dynamodb.AttributeValue) error) error {
	var pageErr error
	err := d.client.ScanPagesWithContext(ctx, input, func(page *dynamodb.ScanOutput, lastPage bool) bool {
		pageErr = fn(page.Items)
		return pageErr == nil
	})
	if err != nil {
		return fmt.Errorf("failed to scan %s: %w", aws.StringValue(input.TableName), err)
	}
	return pageErr
}

// Close closes the DynamoDB connection
func (d *DynamoDBStorage) Close() error {
	// DynamoDB client doesn't need explicit closing
	return nil
}

func habitKey(userID, habitID string) map[string]*dynamodb.AttributeValue {
	return map[string]*dynamodb.AttributeValue{
		"user_id":  {S: aws.String(userID)},
		"habit_id": {S: aws.String(habitID)},
	}
}

func isConditionalCheckFailed(err error) bool {
	var aerr awserr.Error
	return errors.As(err, &aerr) && aerr.Code() == dynamodb.ErrCodeConditionalCheckFailedException
}
