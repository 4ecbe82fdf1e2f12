package codec

import (
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"

	"github.com/noctisdark/mazenrecords-sst/application/ports"
	"github.com/noctisdark/mazenrecords-sst/domain/core/entities"
	"github.com/noctisdark/mazenrecords-sst/pkg/utils"
)

// Brands describes brand records.
var Brands = Kind[entities.Brand]{
	kind:       entities.KindBrand,
	encodeLive: encodeBrand,
	decodeLive: decodeBrand,
	present:    presentBrand,
	echo:       presentBrand,
	parse:      parseBrand,
}

// brandItem is the table layout of a live brand. DynamoDB rejects empty
// string sets, so an empty model set is stored without the attribute.
type brandItem struct {
	UserID    string   `dynamodbav:"userId"`
	SortKey   string   `dynamodbav:"sortKey"`
	UpdatedAt int64    `dynamodbav:"updatedAt"`
	Name      string   `dynamodbav:"name"`
	Models    []string `dynamodbav:"models,stringset,omitempty"`
}

type brandJSON struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Models    []string `json:"models"`
	UpdatedAt int64    `json:"updatedAt"`
}

type brandBody struct {
	Name   string            `json:"name"`
	Models entities.ModelSet `json:"models"`
}

func encodeBrand(userID, id string, b entities.Brand, updatedAt int64) (ports.Record, error) {
	var models []string
	if len(b.Models) > 0 {
		models = b.Models.Sorted()
	}
	return attributevalue.MarshalMap(brandItem{
		UserID:    userID,
		SortKey:   entities.KindBrand.SortKey(id),
		UpdatedAt: updatedAt,
		Name:      b.Name,
		Models:    models,
	})
}

func decodeBrand(rec ports.Record) (entities.Brand, error) {
	var item brandItem
	if err := attributevalue.UnmarshalMap(rec, &item); err != nil {
		return entities.Brand{}, err
	}
	return entities.Brand{
		Name:   item.Name,
		Models: entities.NewModelSet(item.Models...),
	}, nil
}

func presentBrand(e entities.Entity[entities.Brand]) any {
	b, ok := e.Data()
	if !ok {
		return tombstoneJSON[string]{ID: e.ID(), Deleted: true, UpdatedAt: e.UpdatedAt()}
	}
	return brandJSON{
		ID:        e.ID(),
		Name:      b.Name,
		Models:    b.Models.Sorted(),
		UpdatedAt: e.UpdatedAt(),
	}
}

func parseBrand(raw []byte) (entities.Entity[entities.Brand], error) {
	var env submittedEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return entities.Entity[entities.Brand]{}, err
	}
	if err := utils.ValidateStruct(env); err != nil {
		return entities.Entity[entities.Brand]{}, err
	}
	if env.Deleted != nil {
		return entities.Tombstone[entities.Brand](string(env.ID), 0), nil
	}

	var body brandBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return entities.Entity[entities.Brand]{}, err
	}
	if body.Models == nil {
		body.Models = entities.NewModelSet()
	}
	return entities.Live(string(env.ID), entities.Brand(body), 0), nil
}

var _ ports.Codec[entities.Brand] = Brands
