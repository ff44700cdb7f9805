package projection

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
)

// Tables names the projection tables.
type Tables struct {
	Users        string
	Resources    string
	Reservations string
	Lag          string
}

// DynamoStore applies projection ops to DynamoDB tables. All ops are
// idempotent: puts are full-item overwrites keyed by the aggregate id and
// updates set attributes to event-derived values.
type DynamoStore struct {
	client dynamodbiface.DynamoDBAPI
	tables Tables
}

// NewDynamoStore creates a projection store over the given tables.
func NewDynamoStore(client dynamodbiface.DynamoDBAPI, tables Tables) *DynamoStore {
	return &DynamoStore{
		client: client,
		tables: tables,
	}
}

// Item shapes. Timestamps are stored as RFC3339 strings; dynamodbattribute
// has no native time.Time encoding.

type userItem struct {
	UserID         string `dynamodbav:"userId"`
	Email          string `dynamodbav:"email"`
	Role           string `dynamodbav:"role"`
	CreatedAtUTC   string `dynamodbav:"createdAtUtc"`
	LastLoginAtUTC string `dynamodbav:"lastLoginAtUtc,omitempty"`
}

type resourceItem struct {
	ResourceID   string `dynamodbav:"resourceId"`
	Name         string `dynamodbav:"name"`
	Details      string `dynamodbav:"details"`
	Status       string `dynamodbav:"status"`
	CreatedAtUTC string `dynamodbav:"createdAtUtc"`
	UpdatedAtUTC string `dynamodbav:"updatedAtUtc"`
}

type reservationItem struct {
	ReservationID  string `dynamodbav:"reservationId"`
	ResourceID     string `dynamodbav:"resourceId"`
	UserID         string `dynamodbav:"userId"`
	FromUTC        string `dynamodbav:"fromUtc"`
	ToUTC          string `dynamodbav:"toUtc"`
	Status         string `dynamodbav:"status"`
	CreatedAtUTC   string `dynamodbav:"createdAtUtc"`
	CancelledAtUTC string `dynamodbav:"cancelledAtUtc,omitempty"`
}

type lagItem struct {
	Projection         string `dynamodbav:"projection"`
	LastProjectedAtUTC string `dynamodbav:"lastProjectedAtUtc"`
	EventsBehind       int64  `dynamodbav:"eventsBehind"`
}

// Apply applies one projection op.
func (s *DynamoStore) Apply(ctx context.Context, op Op) error {
	switch o := op.(type) {
	case PutUser:
		return s.putItem(ctx, s.tables.Users, userItemFromRow(o.Row))

	case SetUserLastLogin:
		return s.updateItem(ctx, s.tables.Users,
			map[string]*dynamodb.AttributeValue{"userId": {S: aws.String(o.UserID)}},
			"SET lastLoginAtUtc = :v",
			nil,
			map[string]*dynamodb.AttributeValue{":v": {S: aws.String(formatTime(o.LastLoginAtUTC))}},
		)

	case PutResource:
		return s.putItem(ctx, s.tables.Resources, resourceItemFromRow(o.Row))

	case UpdateResourceDetails:
		return s.updateItem(ctx, s.tables.Resources,
			map[string]*dynamodb.AttributeValue{"resourceId": {S: aws.String(o.ResourceID)}},
			"SET #n = :n, details = :d, updatedAtUtc = :u",
			map[string]*string{"#n": aws.String("name")},
			map[string]*dynamodb.AttributeValue{
				":n": {S: aws.String(o.Name)},
				":d": {S: aws.String(o.Details)},
				":u": {S: aws.String(formatTime(o.UpdatedAtUTC))},
			},
		)

	case PutReservation:
		return s.putItem(ctx, s.tables.Reservations, reservationItemFromRow(o.Row))

	case CancelReservation:
		return s.updateItem(ctx, s.tables.Reservations,
			map[string]*dynamodb.AttributeValue{"reservationId": {S: aws.String(o.ReservationID)}},
			"SET #s = :s, cancelledAtUtc = :c",
			map[string]*string{"#s": aws.String("status")},
			map[string]*dynamodb.AttributeValue{
				":s": {S: aws.String("cancelled")},
				":c": {S: aws.String(formatTime(o.CancelledAtUTC))},
			},
		)

	default:
		return fmt.Errorf("unknown projection op %T", op)
	}
}

// UpsertLag overwrites the single lag row.
func (s *DynamoStore) UpsertLag(ctx context.Context, lag LagRow) error {
	return s.putItem(ctx, s.tables.Lag, lagItem{
		Projection:         ProjectionName,
		LastProjectedAtUTC: formatTime(lag.LastProjectedAtUTC),
		EventsBehind:       lag.EventsBehind,
	})
}

// GetLag returns the lag row, or nil when the worker has never projected.
func (s *DynamoStore) GetLag(ctx context.Context) (*LagRow, error) {
	output, err := s.client.GetItemWithContext(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tables.Lag),
		Key: map[string]*dynamodb.AttributeValue{
			"projection": {S: aws.String(ProjectionName)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get projection lag: %w", err)
	}

	if output.Item == nil {
		return nil, nil
	}

	var item lagItem
	if err := dynamodbattribute.UnmarshalMap(output.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to decode projection lag: %w", err)
	}

	lastProjected, err := parseTime(item.LastProjectedAtUTC)
	if err != nil {
		return nil, err
	}

	return &LagRow{
		Projection:         item.Projection,
		LastProjectedAtUTC: lastProjected,
		EventsBehind:       item.EventsBehind,
	}, nil
}

// GetUser returns a user row by id, or nil when absent.
func (s *DynamoStore) GetUser(ctx context.Context, userID string) (*UserRow, error) {
	output, err := s.client.GetItemWithContext(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tables.Users),
		Key: map[string]*dynamodb.AttributeValue{
			"userId": {S: aws.String(userID)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", userID, err)
	}

	if output.Item == nil {
		return nil, nil
	}

	return userRowFromItem(output.Item)
}

// FindUserByEmail scans the users projection for a matching email. The scan
// is acceptable at this table's cardinality; uniqueness enforcement proper
// happens in the command builder plus the decider.
func (s *DynamoStore) FindUserByEmail(ctx context.Context, email string) (*UserRow, error) {
	var row *UserRow

	err := s.client.ScanPagesWithContext(ctx, &dynamodb.ScanInput{
		TableName:        aws.String(s.tables.Users),
		FilterExpression: aws.String("email = :email"),
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
			":email": {S: aws.String(email)},
		},
	}, func(page *dynamodb.ScanOutput, _ bool) bool {
		if len(page.Items) == 0 {
			return true
		}

		decoded, err := userRowFromItem(page.Items[0])
		if err != nil {
			return true
		}

		row = decoded

		return false
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan users by email: %w", err)
	}

	return row, nil
}

// GetResource returns a resource row by id, or nil when absent.
func (s *DynamoStore) GetResource(ctx context.Context, resourceID string) (*ResourceRow, error) {
	output, err := s.client.GetItemWithContext(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tables.Resources),
		Key: map[string]*dynamodb.AttributeValue{
			"resourceId": {S: aws.String(resourceID)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get resource %s: %w", resourceID, err)
	}

	if output.Item == nil {
		return nil, nil
	}

	return resourceRowFromItem(output.Item)
}

// FindResourceByName scans the resources projection for a matching name.
func (s *DynamoStore) FindResourceByName(ctx context.Context, name string) (*ResourceRow, error) {
	var row *ResourceRow

	err := s.client.ScanPagesWithContext(ctx, &dynamodb.ScanInput{
		TableName:        aws.String(s.tables.Resources),
		FilterExpression: aws.String("#n = :name"),
		ExpressionAttributeNames: map[string]*string{
			"#n": aws.String("name"),
		},
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
			":name": {S: aws.String(name)},
		},
	}, func(page *dynamodb.ScanOutput, _ bool) bool {
		if len(page.Items) == 0 {
			return true
		}

		decoded, err := resourceRowFromItem(page.Items[0])
		if err != nil {
			return true
		}

		row = decoded

		return false
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan resources by name: %w", err)
	}

	return row, nil
}

// ListReservations returns one page of reservations matching the filter,
// paginated with an opaque base64url cursor over the store's continuation key.
func (s *DynamoStore) ListReservations(ctx context.Context, filter ReservationFilter) (*ReservationPage, error) {
	input := &dynamodb.ScanInput{
		TableName: aws.String(s.tables.Reservations),
	}

	if filter.Limit > 0 {
		input.Limit = aws.Int64(filter.Limit)
	}

	var (
		conditions []string
		names      = map[string]*string{}
		values     = map[string]*dynamodb.AttributeValue{}
	)

	if filter.UserID != "" {
		conditions = append(conditions, "userId = :userId")
		values[":userId"] = &dynamodb.AttributeValue{S: aws.String(filter.UserID)}
	}

	if filter.Status != "" {
		conditions = append(conditions, "#s = :status")
		names["#s"] = aws.String("status")
		values[":status"] = &dynamodb.AttributeValue{S: aws.String(filter.Status)}
	}

	if len(conditions) > 0 {
		input.FilterExpression = aws.String(strings.Join(conditions, " AND "))
		input.ExpressionAttributeValues = values
	}

	if len(names) > 0 {
		input.ExpressionAttributeNames = names
	}

	if filter.Cursor != "" {
		startKey, err := decodeCursor(filter.Cursor)
		if err != nil {
			return nil, err
		}

		input.ExclusiveStartKey = startKey
	}

	output, err := s.client.ScanWithContext(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to scan reservations: %w", err)
	}

	page := &ReservationPage{Items: make([]ReservationRow, 0, len(output.Items))}

	for _, item := range output.Items {
		row, err := reservationRowFromItem(item)
		if err != nil {
			return nil, err
		}

		page.Items = append(page.Items, *row)
	}

	if len(output.LastEvaluatedKey) > 0 {
		cursor, err := encodeCursor(output.LastEvaluatedKey)
		if err != nil {
			return nil, err
		}

		page.NextCursor = cursor
	}

	return page, nil
}

func (s *DynamoStore) putItem(ctx context.Context, table string, item any) error {
	encoded, err := dynamodbattribute.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to encode item for %s: %w", table, err)
	}

	_, err = s.client.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(table),
		Item:      encoded,
	})
	if err != nil {
		return fmt.Errorf("failed to put item into %s: %w", table, err)
	}

	return nil
}

func (s *DynamoStore) updateItem(
	ctx context.Context,
	table string,
	key map[string]*dynamodb.AttributeValue,
	expression string,
	names map[string]*string,
	values map[string]*dynamodb.AttributeValue,
) error {
	input := &dynamodb.UpdateItemInput{
		TableName:                 aws.String(table),
		Key:                       key,
		UpdateExpression:          aws.String(expression),
		ExpressionAttributeValues: values,
	}

	if len(names) > 0 {
		input.ExpressionAttributeNames = names
	}

	if _, err := s.client.UpdateItemWithContext(ctx, input); err != nil {
		return fmt.Errorf("failed to update item in %s: %w", table, err)
	}

	return nil
}

// Cursor encoding: the continuation key is flattened to its string values and
// serialized as base64url JSON. All projection table keys are string PKs.
func encodeCursor(key map[string]*dynamodb.AttributeValue) (string, error) {
	flat := make(map[string]string, len(key))
	for name, value := range key {
		flat[name] = aws.StringValue(value.S)
	}

	encoded, err := json.Marshal(flat)
	if err != nil {
		return "", fmt.Errorf("failed to encode cursor: %w", err)
	}

	return base64.URLEncoding.EncodeToString(encoded), nil
}

func decodeCursor(cursor string) (map[string]*dynamodb.AttributeValue, error) {
	decoded, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, fmt.Errorf("failed to decode cursor: %w", err)
	}

	var flat map[string]string
	if err := json.Unmarshal(decoded, &flat); err != nil {
		return nil, fmt.Errorf("failed to decode cursor: %w", err)
	}

	key := make(map[string]*dynamodb.AttributeValue, len(flat))
	for name, value := range flat {
		key[name] = &dynamodb.AttributeValue{S: aws.String(value)}
	}

	return key, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", value, err)
	}

	return t, nil
}

func userItemFromRow(row UserRow) userItem {
	item := userItem{
		UserID:       row.UserID,
		Email:        row.Email,
		Role:         row.Role,
		CreatedAtUTC: formatTime(row.CreatedAtUTC),
	}

	if row.LastLoginAtUTC != nil {
		item.LastLoginAtUTC = formatTime(*row.LastLoginAtUTC)
	}

	return item
}

func userRowFromItem(item map[string]*dynamodb.AttributeValue) (*UserRow, error) {
	var decoded userItem
	if err := dynamodbattribute.UnmarshalMap(item, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode user item: %w", err)
	}

	createdAt, err := parseTime(decoded.CreatedAtUTC)
	if err != nil {
		return nil, err
	}

	row := &UserRow{
		UserID:       decoded.UserID,
		Email:        decoded.Email,
		Role:         decoded.Role,
		CreatedAtUTC: createdAt,
	}

	if decoded.LastLoginAtUTC != "" {
		lastLogin, err := parseTime(decoded.LastLoginAtUTC)
		if err != nil {
			return nil, err
		}

		row.LastLoginAtUTC = &lastLogin
	}

	return row, nil
}

func resourceItemFromRow(row ResourceRow) resourceItem {
	return resourceItem{
		ResourceID:   row.ResourceID,
		Name:         row.Name,
		Details:      row.Details,
		Status:       row.Status,
		CreatedAtUTC: formatTime(row.CreatedAtUTC),
		UpdatedAtUTC: formatTime(row.UpdatedAtUTC),
	}
}

func resourceRowFromItem(item map[string]*dynamodb.AttributeValue) (*ResourceRow, error) {
	var decoded resourceItem
	if err := dynamodbattribute.UnmarshalMap(item, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode resource item: %w", err)
	}

	createdAt, err := parseTime(decoded.CreatedAtUTC)
	if err != nil {
		return nil, err
	}

	updatedAt, err := parseTime(decoded.UpdatedAtUTC)
	if err != nil {
		return nil, err
	}

	return &ResourceRow{
		ResourceID:   decoded.ResourceID,
		Name:         decoded.Name,
		Details:      decoded.Details,
		Status:       decoded.Status,
		CreatedAtUTC: createdAt,
		UpdatedAtUTC: updatedAt,
	}, nil
}

func reservationItemFromRow(row ReservationRow) reservationItem {
	item := reservationItem{
		ReservationID: row.ReservationID,
		ResourceID:    row.ResourceID,
		UserID:        row.UserID,
		FromUTC:       formatTime(row.FromUTC),
		ToUTC:         formatTime(row.ToUTC),
		Status:        row.Status,
		CreatedAtUTC:  formatTime(row.CreatedAtUTC),
	}

	if row.CancelledAtUTC != nil {
		item.CancelledAtUTC = formatTime(*row.CancelledAtUTC)
	}

	return item
}

func reservationRowFromItem(item map[string]*dynamodb.AttributeValue) (*ReservationRow, error) {
	var decoded reservationItem
	if err := dynamodbattribute.UnmarshalMap(item, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode reservation item: %w", err)
	}

	from, err := parseTime(decoded.FromUTC)
	if err != nil {
		return nil, err
	}

	to, err := parseTime(decoded.ToUTC)
	if err != nil {
		return nil, err
	}

	createdAt, err := parseTime(decoded.CreatedAtUTC)
	if err != nil {
		return nil, err
	}

	row := &ReservationRow{
		ReservationID: decoded.ReservationID,
		ResourceID:    decoded.ResourceID,
		UserID:        decoded.UserID,
		FromUTC:       from,
		ToUTC:         to,
		Status:        decoded.Status,
		CreatedAtUTC:  createdAt,
	}

	if decoded.CancelledAtUTC != "" {
		cancelledAt, err := parseTime(decoded.CancelledAtUTC)
		if err != nil {
			return nil, err
		}

		row.CancelledAtUTC = &cancelledAt
	}

	return row, nil
}
