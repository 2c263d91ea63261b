package hubspot

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	jmespath "github.com/jmespath-community/go-jmespath"

	"github.com/om239903-ai/internship-project/internal/domain/model"
	apperrors "github.com/om239903-ai/internship-project/internal/errors"
)

// decodePage converts a CRM v3 list (or search) response into a SourcePage.
func decodePage(doc any) (*model.SourcePage, error) {
	raw, err := exprResults.Search(doc)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "decode hubspot results")
	}
	list, _ := raw.([]any)

	page := &model.SourcePage{Items: make([]model.SourceItem, 0, len(list))}
	for _, entry := range list {
		obj, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		item, ok := decodeItem(obj)
		if !ok {
			continue
		}
		page.Items = append(page.Items, item)
	}

	next, err := searchString(doc, exprNextCursor)
	if err != nil {
		return nil, err
	}
	page.Next = model.Cursor(next)

	total, err := exprTotal.Search(doc)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "decode hubspot total")
	}
	if n, ok := intValue(total); ok {
		page.Total = &n
	}
	return page, nil
}

// decodeAssociations converts a CRM v4 associations response into an AssociationPage.
func decodeAssociations(doc any) (*model.AssociationPage, error) {
	raw, err := exprAssociationIDs.Search(doc)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "decode hubspot associations")
	}
	list, _ := raw.([]any)

	page := &model.AssociationPage{IDs: make([]string, 0, len(list))}
	for _, v := range list {
		if id := scalarString(v); id != "" {
			page.IDs = append(page.IDs, id)
		}
	}
	next, err := searchString(doc, exprNextCursor)
	if err != nil {
		return nil, err
	}
	page.Next = model.Cursor(next)
	return page, nil
}

func decodeItem(obj map[string]any) (model.SourceItem, bool) {
	id := scalarString(obj["id"])
	if id == "" {
		return model.SourceItem{}, false
	}
	item := model.SourceItem{
		ID:         id,
		Properties: map[string]any{},
		CreatedAt:  parseTimestamp(obj["createdAt"]),
		UpdatedAt:  parseTimestamp(obj["updatedAt"]),
	}
	if archived, ok := obj["archived"].(bool); ok {
		item.Archived = archived
	}
	if props, ok := obj["properties"].(map[string]any); ok {
		for k, v := range props {
			// Numbers stay textual so amounts keep their precision downstream.
			if n, isNum := v.(json.Number); isNum {
				v = n.String()
			}
			item.Properties[k] = v
		}
	}
	return item, true
}

func searchString(doc any, expr jmespath.JMESPath) (string, error) {
	v, err := expr.Search(doc)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeInternal, "evaluate hubspot response")
	}
	return scalarString(v), nil
}

// scalarString renders ids and cursors that HubSpot returns as either strings or numbers.
func scalarString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}

func intValue(v any) (int, bool) {
	switch val := v.(type) {
	case json.Number:
		n, err := val.Int64()
		if err != nil {
			return 0, false
		}
		return int(n), true
	case float64:
		return int(val), true
	default:
		return 0, false
	}
}

func parseTimestamp(v any) *time.Time {
	s, ok := v.(string)
	if !ok || s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}
