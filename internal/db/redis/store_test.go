package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/rueidis"
	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"

	"github.com/whiteboxllms/clever-widget-factory-sub018/internal/db"
)

// --- client.go tests ---

func TestPing_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.Result(mock.RedisString("PONG")))

	s := NewStoreForTest(c)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPing_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	s := NewStoreForTest(c)
	err := s.Ping(context.Background())
	if !isDBError(err) {
		t.Fatalf("expected *db.Error, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected wrapped deadline, got %v", err)
	}
}

func TestIsRedisErr(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.INFO", "idx")).
		Return(mock.Result(mock.RedisError("Unknown Index Name")))

	s := NewStoreForTest(c)
	err := s.do(context.Background(), s.b().Arbitrary("FT.INFO").Args("idx").Build()).Error()
	if !isRedisErr(err, "unknown index name") {
		t.Errorf("expected case-insensitive match for %v", err)
	}
	if isRedisErr(err, "blob size") {
		t.Error("unexpected match")
	}
	if isRedisErr(errors.New("unknown index name"), "unknown index name") {
		t.Error("client-side errors are not server errors")
	}
	if isRedisErr(nil, "x") {
		t.Error("nil is not a server error")
	}
}

// --- kv.go tests ---

func TestGet_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "emb:key")).
		Return(mock.Result(mock.RedisString("value")))

	s := NewStoreForTest(c)
	data, err := s.Get(context.Background(), "emb:key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "value" {
		t.Errorf("expected value, got %s", data)
	}
}

func TestGet_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "missing")).
		Return(mock.Result(mock.RedisNil()))

	s := NewStoreForTest(c)
	_, err := s.Get(context.Background(), "missing")
	if !errors.Is(err, db.ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestSetWithTTL_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return len(cmd) == 5 && cmd[0] == "SET" && cmd[1] == "emb:key" && cmd[3] == "EX" && cmd[4] == "3600"
		})).
		Return(mock.Result(mock.RedisString("OK")))

	s := NewStoreForTest(c)
	if err := s.SetWithTTL(context.Background(), "emb:key", []byte("v"), time.Hour); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSetWithTTL_NoExpiry(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("SET", "emb:key", "v")).
		Return(mock.Result(mock.RedisString("OK")))

	s := NewStoreForTest(c)
	if err := s.SetWithTTL(context.Background(), "emb:key", []byte("v"), 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSetWithTTL_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool { return cmd[0] == "SET" })).
		Return(mock.ErrorResult(errors.New("connection reset")))

	s := NewStoreForTest(c)
	err := s.SetWithTTL(context.Background(), "k", []byte("v"), time.Minute)
	if !isDBError(err) {
		t.Errorf("expected *db.Error, got %v", err)
	}
}

// --- index.go tests ---

func catalogIndex(t *testing.T) *db.IndexDefinition {
	t.Helper()
	def, err := db.NewIndex("catalog-idx").
		Prefix("catalog:").
		Tag("org_id").
		Numeric("price").
		Vector("vector", 3, db.VectorHNSW, db.DistanceCosine, 16, 200).
		Build()
	if err != nil {
		t.Fatalf("build index: %v", err)
	}
	return def
}

func TestCreateIndex_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	want := []string{
		"FT.CREATE", "catalog-idx", "ON", "HASH", "PREFIX", "1", "catalog:", "SCHEMA",
		"org_id", "TAG",
		"price", "NUMERIC",
		"vector", "VECTOR", "HNSW", "10",
		"TYPE", "FLOAT32", "DIM", "3", "DISTANCE_METRIC", "COSINE", "M", "16", "EF_CONSTRUCTION", "200",
	}
	c.EXPECT().
		Do(gomock.Any(), mock.Match(want...)).
		Return(mock.Result(mock.RedisString("OK")))

	s := NewStoreForTest(c)
	if err := s.CreateIndex(context.Background(), catalogIndex(t)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreateIndex_AlreadyExists(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool { return cmd[0] == "FT.CREATE" })).
		Return(mock.Result(mock.RedisError("Index already exists")))

	s := NewStoreForTest(c)
	err := s.CreateIndex(context.Background(), catalogIndex(t))
	if !errors.Is(err, db.ErrIndexExists) {
		t.Errorf("expected ErrIndexExists, got %v", err)
	}
}

func TestCreateIndex_NoSearchModule(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool { return cmd[0] == "FT.CREATE" })).
		Return(mock.Result(mock.RedisError("ERR unknown command 'FT.CREATE'")))

	s := NewStoreForTest(c)
	err := s.CreateIndex(context.Background(), catalogIndex(t))
	if !errors.Is(err, db.ErrUnknownCommand) {
		t.Errorf("expected ErrUnknownCommand, got %v", err)
	}
}

func TestDropIndex_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.DROPINDEX", "catalog-idx")).
		Return(mock.Result(mock.RedisString("OK")))

	s := NewStoreForTest(c)
	if err := s.DropIndex(context.Background(), "catalog-idx"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDropIndex_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.DROPINDEX", "missing")).
		Return(mock.Result(mock.RedisError("Unknown Index name")))

	s := NewStoreForTest(c)
	if err := s.DropIndex(context.Background(), "missing"); !errors.Is(err, db.ErrIndexNotFound) {
		t.Errorf("expected ErrIndexNotFound, got %v", err)
	}
}

func TestIndexExists(t *testing.T) {
	tests := []struct {
		name    string
		result  rueidis.RedisResult
		want    bool
		wantErr error
	}{
		{"exists", mock.Result(mock.RedisArray(mock.RedisString("index_name"), mock.RedisString("catalog-idx"))), true, nil},
		{"missing", mock.Result(mock.RedisError("Unknown index name")), false, nil},
		{"valkey missing", mock.Result(mock.RedisError("Index with name 'catalog-idx' not found")), false, nil},
		{"no module", mock.Result(mock.RedisError("ERR unknown command 'FT.INFO'")), false, db.ErrUnknownCommand},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			c := mock.NewClient(ctrl)
			c.EXPECT().Do(gomock.Any(), mock.Match("FT.INFO", "catalog-idx")).Return(tc.result)

			got, err := NewStoreForTest(c).IndexExists(context.Background(), "catalog-idx")
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("IndexExists = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestBuildCreateArgs_Validation(t *testing.T) {
	if _, err := buildCreateArgs(&db.IndexDefinition{}); err == nil {
		t.Error("expected error for empty name")
	}
	if _, err := buildCreateArgs(&db.IndexDefinition{Name: "idx"}); err == nil {
		t.Error("expected error for no fields")
	}
}

func TestBuildFieldArgs_Tag(t *testing.T) {
	args, err := buildFieldArgs(&db.IndexField{Name: "org_id", Type: db.IndexFieldTag, TagSeparator: "|", TagCaseSensitive: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertContains(t, args, "SEPARATOR")
	assertContains(t, args, "CASESENSITIVE")
}

func TestBuildFieldArgs_Errors(t *testing.T) {
	if _, err := buildFieldArgs(&db.IndexField{}); err == nil {
		t.Error("expected error for empty name")
	}
	if _, err := buildFieldArgs(&db.IndexField{Name: "v", Type: db.IndexFieldVector}); err == nil {
		t.Error("expected error for zero DIM")
	}
	if _, err := buildFieldArgs(&db.IndexField{Name: "x", Type: db.IndexFieldType(99)}); err == nil {
		t.Error("expected error for unknown type")
	}
}

func TestBuildVectorFieldArgs_FlatSkipsHNSWParams(t *testing.T) {
	args, err := buildVectorFieldArgs(&db.IndexField{
		Name: "v", Type: db.IndexFieldVector, VectorAlgo: db.VectorFlat, VectorDim: 8, VectorM: 16,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, a := range args {
		if a == "M" {
			t.Errorf("FLAT field must not carry M: %v", args)
		}
	}
}

func assertContains(t *testing.T, args []string, want string) {
	t.Helper()
	for _, a := range args {
		if a == want {
			return
		}
	}
	t.Errorf("args %v missing %q", args, want)
}

// --- search.go tests ---

func knnCommand(t *testing.T) *db.KNNCommand {
	t.Helper()
	cmd, err := db.BuildKNNCommand(&db.KNNQuery{
		IndexName:    "catalog-idx",
		Vector:       []float32{0.1, 0.2},
		K:            10,
		ReturnFields: []string{"name", db.ScoreField},
	})
	if err != nil {
		t.Fatalf("build command: %v", err)
	}
	return cmd
}

func TestSearchKNN_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.SEARCH" && cmd[1] == "catalog-idx"
		})).
		Return(mock.Result(mock.RedisArray(
			mock.RedisInt64(2),
			mock.RedisString("catalog:a"),
			mock.RedisArray(
				mock.RedisString(db.ScoreField),
				mock.RedisString("0.1"),
				mock.RedisString("name"),
				mock.RedisString("Claw Hammer"),
			),
			mock.RedisString("catalog:b"),
			mock.RedisArray(
				mock.RedisString(db.ScoreField),
				mock.RedisString("1.3"),
				mock.RedisString("name"),
				mock.RedisString("Rubber Mallet"),
			),
		)))

	s := NewStoreForTest(c)
	result, err := s.SearchKNN(context.Background(), knnCommand(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Total != 2 || len(result.Entries) != 2 {
		t.Fatalf("expected 2 entries, got total=%d len=%d", result.Total, len(result.Entries))
	}
	if result.Entries[0].Key != "catalog:a" {
		t.Errorf("expected key catalog:a, got %s", result.Entries[0].Key)
	}
	// raw distance, not converted or clamped
	if result.Entries[1].Distance != 1.3 {
		t.Errorf("expected distance 1.3, got %f", result.Entries[1].Distance)
	}
	if _, ok := result.Entries[0].Fields[db.ScoreField]; ok {
		t.Error("score field should be removed from fields")
	}
	if result.Entries[0].Fields["name"] != "Claw Hammer" {
		t.Errorf("name = %q", result.Entries[0].Fields["name"])
	}
}

func TestSearchKNN_SendsParams(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			n := len(cmd)
			return cmd[0] == "FT.SEARCH" && cmd[n-2] == "DIALECT" && cmd[n-1] == "2"
		})).
		Return(mock.Result(mock.RedisArray(mock.RedisInt64(0))))

	s := NewStoreForTest(c)
	if _, err := s.SearchKNN(context.Background(), knnCommand(t)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSearchKNN_Empty(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool { return cmd[0] == "FT.SEARCH" })).
		Return(mock.Result(mock.RedisArray(mock.RedisInt64(0))))

	s := NewStoreForTest(c)
	result, err := s.SearchKNN(context.Background(), knnCommand(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Entries) != 0 {
		t.Errorf("expected 0 entries, got %d", len(result.Entries))
	}
}

func TestSearchKNN_ErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		result rueidis.RedisResult
		want   error
	}{
		{"missing index", mock.Result(mock.RedisError("idx: no such index")), db.ErrIndexNotFound},
		{"no module", mock.Result(mock.RedisError("ERR unknown command 'FT.SEARCH'")), db.ErrUnknownCommand},
		{"blob size", mock.Result(mock.RedisError(
			"Error parsing vector similarity query: query vector blob size (8) does not match index's expected size (12).",
		)), db.ErrVectorSize},
		{"deadline", mock.ErrorResult(context.DeadlineExceeded), context.DeadlineExceeded},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			c := mock.NewClient(ctrl)
			c.EXPECT().
				Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool { return cmd[0] == "FT.SEARCH" })).
				Return(tc.result)

			_, err := NewStoreForTest(c).SearchKNN(context.Background(), knnCommand(t))
			if !isDBError(err) {
				t.Fatalf("expected *db.Error, got %v", err)
			}
			if !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestSearchKNN_MissingScore(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool { return cmd[0] == "FT.SEARCH" })).
		Return(mock.Result(mock.RedisArray(
			mock.RedisInt64(1),
			mock.RedisString("catalog:a"),
			mock.RedisArray(mock.RedisString("name"), mock.RedisString("x")),
		)))

	if _, err := NewStoreForTest(c).SearchKNN(context.Background(), knnCommand(t)); err == nil {
		t.Fatal("expected error for missing score")
	}
}

func TestSearchKNN_Validation(t *testing.T) {
	s := &Store{}
	if _, err := s.SearchKNN(context.Background(), nil); !errors.Is(err, db.ErrInvalidQuery) {
		t.Errorf("expected ErrInvalidQuery, got %v", err)
	}
	if _, err := s.SearchKNN(context.Background(), &db.KNNCommand{Index: "idx"}); !errors.Is(err, db.ErrInvalidQuery) {
		t.Errorf("expected ErrInvalidQuery, got %v", err)
	}
}

// --- helpers ---

// isDBError is a test helper for checking wrapped db.Error.
func isDBError(err error) bool {
	var dbErr *db.Error
	return errors.As(err, &dbErr)
}
