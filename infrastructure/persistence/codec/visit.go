package codec

import (
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"

	"github.com/noctisdark/mazenrecords-sst/application/ports"
	"github.com/noctisdark/mazenrecords-sst/domain/core/entities"
	"github.com/noctisdark/mazenrecords-sst/pkg/utils"
)

// Visits describes visit records. Visits are presented with a numeric id.
var Visits = Kind[entities.Visit]{
	kind:       entities.KindVisit,
	encodeLive: encodeVisit,
	decodeLive: decodeVisit,
	present:    presentVisit[numericID],
	echo:       presentVisit[string],
	parse:      parseVisit,
}

type visitItem struct {
	UserID    string  `dynamodbav:"userId"`
	SortKey   string  `dynamodbav:"sortKey"`
	UpdatedAt int64   `dynamodbav:"updatedAt"`
	Date      int64   `dynamodbav:"date"`
	Client    string  `dynamodbav:"client"`
	Contact   string  `dynamodbav:"contact"`
	Brand     string  `dynamodbav:"brand"`
	Model     string  `dynamodbav:"model"`
	Problem   string  `dynamodbav:"problem"`
	Fix       string  `dynamodbav:"fix"`
	Amount    float64 `dynamodbav:"amount"`
}

type visitJSON[ID ~string] struct {
	ID        ID      `json:"id"`
	Date      int64   `json:"date"`
	Client    string  `json:"client"`
	Contact   string  `json:"contact"`
	Brand     string  `json:"brand"`
	Model     string  `json:"model"`
	Problem   string  `json:"problem"`
	Fix       string  `json:"fix"`
	Amount    float64 `json:"amount"`
	UpdatedAt int64   `json:"updatedAt"`
}

type visitBody struct {
	Date    Millis  `json:"date"`
	Client  string  `json:"client"`
	Contact string  `json:"contact"`
	Brand   string  `json:"brand"`
	Model   string  `json:"model"`
	Problem string  `json:"problem"`
	Fix     string  `json:"fix"`
	Amount  float64 `json:"amount"`
}

func encodeVisit(userID, id string, v entities.Visit, updatedAt int64) (ports.Record, error) {
	return attributevalue.MarshalMap(visitItem{
		UserID:    userID,
		SortKey:   entities.KindVisit.SortKey(id),
		UpdatedAt: updatedAt,
		Date:      v.Date,
		Client:    v.Client,
		Contact:   v.Contact,
		Brand:     v.Brand,
		Model:     v.Model,
		Problem:   v.Problem,
		Fix:       v.Fix,
		Amount:    v.Amount,
	})
}

func decodeVisit(rec ports.Record) (entities.Visit, error) {
	var item visitItem
	if err := attributevalue.UnmarshalMap(rec, &item); err != nil {
		return entities.Visit{}, err
	}
	return entities.Visit{
		Date:    item.Date,
		Client:  item.Client,
		Contact: item.Contact,
		Brand:   item.Brand,
		Model:   item.Model,
		Problem: item.Problem,
		Fix:     item.Fix,
		Amount:  item.Amount,
	}, nil
}

func presentVisit[ID ~string](e entities.Entity[entities.Visit]) any {
	v, ok := e.Data()
	if !ok {
		return tombstoneJSON[ID]{ID: ID(e.ID()), Deleted: true, UpdatedAt: e.UpdatedAt()}
	}
	return visitJSON[ID]{
		ID:        ID(e.ID()),
		Date:      v.Date,
		Client:    v.Client,
		Contact:   v.Contact,
		Brand:     v.Brand,
		Model:     v.Model,
		Problem:   v.Problem,
		Fix:       v.Fix,
		Amount:    v.Amount,
		UpdatedAt: e.UpdatedAt(),
	}
}

func parseVisit(raw []byte) (entities.Entity[entities.Visit], error) {
	var env submittedEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return entities.Entity[entities.Visit]{}, err
	}
	if err := utils.ValidateStruct(env); err != nil {
		return entities.Entity[entities.Visit]{}, err
	}
	if env.Deleted != nil {
		return entities.Tombstone[entities.Visit](string(env.ID), 0), nil
	}

	var body visitBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return entities.Entity[entities.Visit]{}, err
	}
	return entities.Live(string(env.ID), entities.Visit{
		Date:    int64(body.Date),
		Client:  body.Client,
		Contact: body.Contact,
		Brand:   body.Brand,
		Model:   body.Model,
		Problem: body.Problem,
		Fix:     body.Fix,
		Amount:  body.Amount,
	}, 0), nil
}

var _ ports.Codec[entities.Visit] = Visits
