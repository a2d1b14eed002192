package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/onnxkit/internal/compose"
	"github.com/born-ml/onnxkit/internal/engine"
	"github.com/born-ml/onnxkit/internal/metrics"
	"github.com/born-ml/onnxkit/internal/onnx"
	"github.com/born-ml/onnxkit/internal/store"
)

func floatTensor(name string, dims ...int64) onnx.ValueInfoProto {
	return onnx.MakeTensorValueInfo(name, onnx.TensorProtoFloat, onnx.Dims(dims...))
}

func reluModel() []byte {
	return onnx.Encode(onnx.MakeModel(onnx.MakeGraph("features",
		[]onnx.NodeProto{onnx.MakeNode("Relu", []string{"img"}, []string{"feat"})},
		[]onnx.ValueInfoProto{floatTensor("img", 1, 10)},
		[]onnx.ValueInfoProto{floatTensor("feat", 1, 10)},
	)))
}

func softmaxModel() []byte {
	return onnx.Encode(onnx.MakeModel(onnx.MakeGraph("head",
		[]onnx.NodeProto{onnx.MakeNode("Softmax", []string{"X"}, []string{"Y"})},
		[]onnx.ValueInfoProto{floatTensor("X", 1, 10)},
		[]onnx.ValueInfoProto{floatTensor("Y", 1, 10)},
	)))
}

func newTestServer(t *testing.T, st store.Store) http.Handler {
	t.Helper()
	reg := prometheus.NewRegistry()
	eng := engine.New(engine.WithMetrics(metrics.New(reg)))
	return New(eng, st, WithGatherer(reg), WithMaxModelBytes(1<<16)).Handler()
}

func do(t *testing.T, h http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func upload(t *testing.T, h http.Handler, data []byte) string {
	t.Helper()
	rr := do(t, h, http.MethodPut, "/v1/models", data)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var resp modelResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "/v1/models/"+resp.ID, rr.Header().Get("Location"))
	return resp.ID
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func TestHealthz(t *testing.T) {
	h := newTestServer(t, store.NewMemory())

	rr := do(t, h, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestHealthzReportsRedis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	st := store.NewRedisFromClient(backend.NewClient(&backend.Options{Addr: mr.Addr(), MaxRetries: -1}))
	h := newTestServer(t, st)

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/healthz", nil).Code)

	mr.Close()
	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodGet, "/healthz", nil).Code)
}

func TestModelLifecycle(t *testing.T) {
	h := newTestServer(t, store.NewMemory())

	id := upload(t, h, softmaxModel())
	assert.Equal(t, store.ID(softmaxModel()), id)

	rr := do(t, h, http.MethodGet, "/v1/models/"+id, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/octet-stream", rr.Header().Get("Content-Type"))
	assert.Equal(t, softmaxModel(), rr.Body.Bytes())

	rr = do(t, h, http.MethodGet, "/v1/models", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"ids":["`+id+`"]}`, rr.Body.String())

	rr = do(t, h, http.MethodPost, "/v1/models/"+id+"/check", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"valid":true,"warnings":[]}`, rr.Body.String())

	rr = do(t, h, http.MethodGet, "/v1/models/"+id+"/inspect", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var summary map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &summary))
	assert.Equal(t, "head", summary["graph_name"])

	assert.Equal(t, http.StatusNoContent, do(t, h, http.MethodDelete, "/v1/models/"+id, nil).Code)
	rr = do(t, h, http.MethodGet, "/v1/models/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "not found", decodeError(t, rr).Kind)
}

func TestUploadErrors(t *testing.T) {
	h := newTestServer(t, store.NewMemory())

	rr := do(t, h, http.MethodPut, "/v1/models", []byte{0xff, 0xff})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "malformed model", decodeError(t, rr).Kind)

	rr = do(t, h, http.MethodPut, "/v1/models", make([]byte, 1<<17))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)

	rr = do(t, h, http.MethodGet, "/v1/models/not-a-digest", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "invalid id", decodeError(t, rr).Kind)
}

func TestCheckInvalidModel(t *testing.T) {
	h := newTestServer(t, store.NewMemory())

	m, err := onnx.Decode(softmaxModel())
	require.NoError(t, err)
	m.Graph.Nodes[0].Inputs = []string{"missing"}
	id := upload(t, h, onnx.Encode(m))

	rr := do(t, h, http.MethodPost, "/v1/models/"+id+"/check", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	resp := decodeError(t, rr)
	assert.Equal(t, "invalid model", resp.Kind)
	assert.Contains(t, resp.Error, "unresolved reference")
}

func TestConvert(t *testing.T) {
	h := newTestServer(t, store.NewMemory())
	id := upload(t, h, reluModel())

	rr := do(t, h, http.MethodPost, "/v1/models/"+id+"/convert?target=13", nil)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var resp modelResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))

	rr = do(t, h, http.MethodGet, "/v1/models/"+resp.ID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	converted, err := onnx.Decode(rr.Body.Bytes())
	require.NoError(t, err)
	v, _ := converted.OpsetVersion(onnx.DefaultDomain)
	assert.Equal(t, int64(13), v)

	rr = do(t, h, http.MethodPost, "/v1/models/"+id+"/convert?target=999", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "convert", decodeError(t, rr).Kind)

	rr = do(t, h, http.MethodPost, "/v1/models/"+id+"/convert?target=latest", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestMerge(t *testing.T) {
	h := newTestServer(t, store.NewMemory())
	first := upload(t, h, reluModel())
	second := upload(t, h, softmaxModel())

	body, err := json.Marshal(MergeRequest{
		First:  first,
		Second: second,
		IOMap:  []compose.Pair{{First: "feat", Second: "X"}},
	})
	require.NoError(t, err)
	rr := do(t, h, http.MethodPost, "/v1/merge", body)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var resp modelResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	rr = do(t, h, http.MethodGet, "/v1/models/"+resp.ID+"/inspect", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"graph_name":"features_head"`)

	rr = do(t, h, http.MethodPost, "/v1/merge",
		[]byte(`{"first":"`+first+`","second":"`+second+`","io_map":[{"first":"nope","second":"X"}]}`))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "compose", decodeError(t, rr).Kind)

	rr = do(t, h, http.MethodPost, "/v1/merge", []byte(`{"first":"`+first+`","second":"`+store.ID([]byte("x"))+`"}`))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.True(t, strings.HasPrefix(decodeError(t, rr).Error, "second model"))

	rr = do(t, h, http.MethodPost, "/v1/merge", []byte(`{"frist":"x"}`))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSort(t *testing.T) {
	h := newTestServer(t, store.NewMemory())
	m := onnx.MakeModel(onnx.MakeGraph("g",
		[]onnx.NodeProto{
			onnx.MakeNode("Sigmoid", []string{"H"}, []string{"Y"}),
			onnx.MakeNode("Relu", []string{"X"}, []string{"H"}),
		},
		[]onnx.ValueInfoProto{floatTensor("X", 4)},
		[]onnx.ValueInfoProto{floatTensor("Y", 4)},
	))
	id := upload(t, h, onnx.Encode(m))

	rr := do(t, h, http.MethodPost, "/v1/models/"+id+"/sort", nil)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestServer(t, store.NewMemory())
	id := upload(t, h, softmaxModel())
	do(t, h, http.MethodPost, "/v1/models/"+id+"/check", nil)

	rr := do(t, h, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `onnxkit_operations_total{op="check",outcome="ok"} 1`)
}
