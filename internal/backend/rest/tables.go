package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"

	"github.com/terraincognita07/us/internal/backend"
)

func (client *Client) Query(ctx context.Context, table string, query backend.Query, dest any) error {
	if err := requireSlicePointer(dest); err != nil {
		return err
	}
	return client.do(ctx, request{
		method: http.MethodGet,
		path:   restPrefix + "/" + table,
		query:  queryValues(query),
		token:  client.accessToken(),
	}, dest)
}

// Insert asks for the stored representation so generated ids come back with the write.
func (client *Client) Insert(ctx context.Context, table string, row any, dest any) error {
	header := http.Header{}
	if dest != nil {
		if err := requireSlicePointer(dest); err != nil {
			return err
		}
		header.Set(headerPrefer, "return=representation")
	} else {
		header.Set(headerPrefer, "return=minimal")
	}

	var raw json.RawMessage
	if err := client.do(ctx, request{
		method: http.MethodPost,
		path:   restPrefix + "/" + table,
		body:   row,
		header: header,
		token:  client.accessToken(),
	}, &raw); err != nil {
		return err
	}
	if dest == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decode inserted %s rows: %w", table, err)
	}
	return nil
}

func (client *Client) Delete(ctx context.Context, table string, filter backend.Filter) error {
	if len(filter) == 0 {
		return fmt.Errorf("delete %s: filter required", table)
	}
	return client.do(ctx, request{
		method: http.MethodDelete,
		path:   restPrefix + "/" + table,
		query:  filterValues(filter),
		token:  client.accessToken(),
	}, nil)
}

func requireSlicePointer(dest any) error {
	value := reflect.ValueOf(dest)
	if value.Kind() != reflect.Pointer || value.IsNil() || value.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("destination must be a pointer to a slice, got %T", dest)
	}
	return nil
}
