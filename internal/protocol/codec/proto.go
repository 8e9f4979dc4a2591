package codec

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/palemoky/treasure-hunt/internal/protocol"
)

const (
	fieldType    = "type"
	fieldPayload = "payload"
)

// ProtoCodec Protobuf 二进制帧
//
// 信封是一个 google.protobuf.Struct：{"type": string, "payload": Value}，
// payload 与 JSON 编码的结构一一对应，客户端可以用任何 protobuf 运行时解析。
type ProtoCodec struct{}

func (ProtoCodec) Name() string { return "proto" }

func (ProtoCodec) Binary() bool { return true }

// Encode 将消息编码为 Protobuf 字节
func (ProtoCodec) Encode(m *protocol.Message) ([]byte, error) {
	env := getEnvelope()
	defer putEnvelope(env)

	env.Fields = map[string]*structpb.Value{
		fieldType: structpb.NewStringValue(string(m.Type)),
	}
	if len(m.Payload) > 0 {
		payload := &structpb.Value{}
		if err := payload.UnmarshalJSON(m.Payload); err != nil {
			return nil, fmt.Errorf("转换 payload 失败: %w", err)
		}
		env.Fields[fieldPayload] = payload
	}
	return proto.Marshal(env)
}

// Decode 从 Protobuf 字节解码消息
func (ProtoCodec) Decode(data []byte) (*protocol.Message, error) {
	env := getEnvelope()
	defer putEnvelope(env)

	if err := proto.Unmarshal(data, env); err != nil {
		return nil, err
	}

	msgType := env.GetFields()[fieldType].GetStringValue()
	if msgType == "" {
		return nil, fmt.Errorf("消息缺少 type 字段")
	}

	msg := GetMessage()
	msg.Type = protocol.MessageType(msgType)
	if payload, ok := env.GetFields()[fieldPayload]; ok && payload != nil {
		raw, err := payload.MarshalJSON()
		if err != nil {
			PutMessage(msg)
			return nil, fmt.Errorf("转换 payload 失败: %w", err)
		}
		msg.Payload = raw
	}
	return msg, nil
}
