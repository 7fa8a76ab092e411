package events

import (
	"fmt"
	"time"

	"github.com/golang/protobuf/proto"
	"github.com/golang/protobuf/ptypes"
	structpb "github.com/golang/protobuf/ptypes/struct"
)

const (
	nameKey = "$name"
	timeKey = "$time"
)

// Encode serializes an event as a protobuf Struct. The name and RFC 3339
// timestamp travel as reserved fields next to the event fields.
func Encode(ev Event) ([]byte, error) {
	s := &structpb.Struct{Fields: make(map[string]*structpb.Value, len(ev.Fields)+2)}
	for key, val := range ev.Fields {
		v, err := toValue(val)
		if err != nil {
			return nil, fmt.Errorf("field %q: %v", key, err)
		}
		s.Fields[key] = v
	}
	ts, err := ptypes.TimestampProto(ev.Time)
	if err != nil {
		return nil, err
	}
	s.Fields[nameKey] = stringValue(ev.Name)
	s.Fields[timeKey] = stringValue(ptypes.TimestampString(ts))
	return proto.Marshal(s)
}

// Decode parses bytes produced by Encode.
func Decode(data []byte) (ev Event, err error) {
	var s structpb.Struct
	if err = proto.Unmarshal(data, &s); err != nil {
		return
	}
	ev.Fields = make(map[string]interface{}, len(s.Fields))
	for key, val := range s.Fields {
		switch key {
		case nameKey:
			ev.Name = val.GetStringValue()
		case timeKey:
			if ev.Time, err = time.Parse(time.RFC3339Nano, val.GetStringValue()); err != nil {
				return
			}
		default:
			ev.Fields[key] = fromValue(val)
		}
	}
	return
}

func stringValue(s string) *structpb.Value {
	return &structpb.Value{Kind: &structpb.Value_StringValue{StringValue: s}}
}

func toValue(val interface{}) (*structpb.Value, error) {
	switch v := val.(type) {
	case nil:
		return &structpb.Value{Kind: &structpb.Value_NullValue{}}, nil
	case string:
		return stringValue(v), nil
	case bool:
		return &structpb.Value{Kind: &structpb.Value_BoolValue{BoolValue: v}}, nil
	case int:
		return numberValue(float64(v)), nil
	case int64:
		return numberValue(float64(v)), nil
	case uint8:
		return numberValue(float64(v)), nil
	case uint16:
		return numberValue(float64(v)), nil
	case uint32:
		return numberValue(float64(v)), nil
	case uint64:
		return numberValue(float64(v)), nil
	case float64:
		return numberValue(v), nil
	case error:
		return stringValue(v.Error()), nil
	case fmt.Stringer:
		return stringValue(v.String()), nil
	}
	return nil, fmt.Errorf("unsupported type %T", val)
}

func numberValue(f float64) *structpb.Value {
	return &structpb.Value{Kind: &structpb.Value_NumberValue{NumberValue: f}}
}

func fromValue(v *structpb.Value) interface{} {
	switch k := v.Kind.(type) {
	case *structpb.Value_StringValue:
		return k.StringValue
	case *structpb.Value_BoolValue:
		return k.BoolValue
	case *structpb.Value_NumberValue:
		return k.NumberValue
	}
	return nil
}
