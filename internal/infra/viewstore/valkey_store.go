package viewstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/sparky-web/internal/domain/chat"
	"github.com/yanqian/sparky-web/internal/domain/summarizer"
	"github.com/yanqian/sparky-web/internal/domain/view"
)

const (
	fieldCreatedAt      = "created_at"
	fieldChatInput      = "chat_input"
	fieldChatLoading    = "chat_loading"
	fieldSummaryInput   = "summary_input"
	fieldSummaryResult  = "summary_result"
	fieldSummaryLoading = "summary_loading"
)

// Writes only land on views that still exist, so a request settling after the
// page was closed cannot resurrect it.
const (
	setFieldLua = `
if redis.call('EXISTS', KEYS[1]) == 0 then return 0 end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
return 1`

	appendMessageLua = `
if redis.call('EXISTS', KEYS[1]) == 0 then return 0 end
redis.call('RPUSH', KEYS[2], ARGV[1])
local ttl = redis.call('PTTL', KEYS[1])
if ttl > 0 then redis.call('PEXPIRE', KEYS[2], ttl) end
return 1`
)

var (
	setFieldScript      = valkey.NewLuaScript(setFieldLua)
	appendMessageScript = valkey.NewLuaScript(appendMessageLua)
)

// ValkeyStore keeps view state in a Valkey-compatible database so several
// front-end instances can serve the same page session.
//
// Layout: a hash prefix:view:{id} for scalar fields and a list
// prefix:view:{id}:transcript of JSON encoded messages. The braces are a hash
// tag, so both keys of a view share a cluster slot for the multi-key script
// and DEL.
type ValkeyStore struct {
	client valkey.Client
	prefix string
}

// NewValkeyStore constructs a new store backed by Valkey.
func NewValkeyStore(client valkey.Client, prefix string) *ValkeyStore {
	if prefix == "" {
		prefix = "sparky"
	}
	return &ValkeyStore{client: client, prefix: prefix}
}

func (s *ValkeyStore) CreateView(ctx context.Context, v view.View, ttl time.Duration) error {
	cmds := []valkey.Completed{
		s.client.B().Del().Key(s.transcriptKey(v.ID)).Build(),
		s.client.B().Hset().Key(s.viewKey(v.ID)).FieldValue().
			FieldValue(fieldCreatedAt, v.CreatedAt.UTC().Format(time.RFC3339Nano)).
			FieldValue(fieldChatLoading, "0").
			FieldValue(fieldSummaryLoading, "0").
			Build(),
	}
	if ttl > 0 {
		cmds = append(cmds, s.client.B().Pexpire().Key(s.viewKey(v.ID)).Milliseconds(ttl.Milliseconds()).Build())
	}
	for _, resp := range s.client.DoMulti(ctx, cmds...) {
		if err := resp.Error(); err != nil {
			return err
		}
	}
	return nil
}

func (s *ValkeyStore) TouchView(ctx context.Context, id string, ttl time.Duration) (view.View, error) {
	raw, err := s.client.Do(ctx, s.client.B().Hget().Key(s.viewKey(id)).Field(fieldCreatedAt).Build()).ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return view.View{}, view.ErrNotFound
		}
		return view.View{}, err
	}
	createdAt, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return view.View{}, fmt.Errorf("decode view created_at: %w", err)
	}
	if ttl > 0 {
		ms := ttl.Milliseconds()
		for _, resp := range s.client.DoMulti(ctx,
			s.client.B().Pexpire().Key(s.viewKey(id)).Milliseconds(ms).Build(),
			s.client.B().Pexpire().Key(s.transcriptKey(id)).Milliseconds(ms).Build(),
		) {
			if err := resp.Error(); err != nil {
				return view.View{}, err
			}
		}
	}
	return view.View{ID: id, CreatedAt: createdAt}, nil
}

func (s *ValkeyStore) DeleteView(ctx context.Context, id string) error {
	deleted, err := s.client.Do(ctx, s.client.B().Del().Key(s.viewKey(id), s.transcriptKey(id)).Build()).AsInt64()
	if err != nil {
		return err
	}
	if deleted == 0 {
		return view.ErrNotFound
	}
	return nil
}

func (s *ValkeyStore) AppendMessage(ctx context.Context, id string, msg chat.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return s.guarded(ctx, appendMessageScript, []string{s.viewKey(id), s.transcriptKey(id)}, []string{string(payload)})
}

func (s *ValkeyStore) SetChatInput(ctx context.Context, id, input string) error {
	return s.setField(ctx, id, fieldChatInput, input)
}

func (s *ValkeyStore) SetChatLoading(ctx context.Context, id string, loading bool) error {
	return s.setField(ctx, id, fieldChatLoading, encodeBool(loading))
}

func (s *ValkeyStore) ChatState(ctx context.Context, id string) (chat.State, error) {
	resps := s.client.DoMulti(ctx,
		s.client.B().Hgetall().Key(s.viewKey(id)).Build(),
		s.client.B().Lrange().Key(s.transcriptKey(id)).Start(0).Stop(-1).Build(),
	)
	fields, err := s.fields(resps[0])
	if err != nil {
		return chat.State{}, err
	}
	entries, err := resps[1].AsStrSlice()
	if err != nil && !valkey.IsValkeyNil(err) {
		return chat.State{}, err
	}
	transcript := make([]chat.Message, 0, len(entries))
	for _, entry := range entries {
		var msg chat.Message
		if err := json.Unmarshal([]byte(entry), &msg); err != nil {
			return chat.State{}, fmt.Errorf("decode transcript entry: %w", err)
		}
		transcript = append(transcript, msg)
	}
	return chat.State{
		Transcript: transcript,
		Input:      fields[fieldChatInput],
		Loading:    fields[fieldChatLoading] == "1",
	}, nil
}

func (s *ValkeyStore) SetSummaryInput(ctx context.Context, id, input string) error {
	return s.setField(ctx, id, fieldSummaryInput, input)
}

func (s *ValkeyStore) SetSummaryResult(ctx context.Context, id, result string) error {
	return s.setField(ctx, id, fieldSummaryResult, result)
}

func (s *ValkeyStore) SetSummaryLoading(ctx context.Context, id string, loading bool) error {
	return s.setField(ctx, id, fieldSummaryLoading, encodeBool(loading))
}

func (s *ValkeyStore) SummaryState(ctx context.Context, id string) (summarizer.State, error) {
	fields, err := s.fields(s.client.Do(ctx, s.client.B().Hgetall().Key(s.viewKey(id)).Build()))
	if err != nil {
		return summarizer.State{}, err
	}
	return summarizer.State{
		Input:   fields[fieldSummaryInput],
		Result:  fields[fieldSummaryResult],
		Loading: fields[fieldSummaryLoading] == "1",
	}, nil
}

// Close releases the underlying client.
func (s *ValkeyStore) Close() error {
	s.client.Close()
	return nil
}

func (s *ValkeyStore) setField(ctx context.Context, id, field, value string) error {
	return s.guarded(ctx, setFieldScript, []string{s.viewKey(id)}, []string{field, value})
}

func (s *ValkeyStore) guarded(ctx context.Context, script *valkey.Lua, keys, args []string) error {
	applied, err := script.Exec(ctx, s.client, keys, args).AsInt64()
	if err != nil {
		return err
	}
	if applied == 0 {
		return view.ErrNotFound
	}
	return nil
}

func (s *ValkeyStore) fields(resp valkey.ValkeyResult) (map[string]string, error) {
	fields, err := resp.AsStrMap()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, view.ErrNotFound
		}
		return nil, err
	}
	if _, ok := fields[fieldCreatedAt]; !ok {
		return nil, view.ErrNotFound
	}
	return fields, nil
}

func (s *ValkeyStore) viewKey(id string) string {
	return fmt.Sprintf("%s:view:{%s}", s.prefix, id)
}

func (s *ValkeyStore) transcriptKey(id string) string {
	return fmt.Sprintf("%s:view:{%s}:transcript", s.prefix, id)
}

func encodeBool(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

var _ Store = (*ValkeyStore)(nil)
