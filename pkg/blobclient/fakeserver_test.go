package blobclient

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/LeeDigitalWorks/zapblob/pkg/types"

	"github.com/google/uuid"
	sha256 "github.com/minio/sha256-simd"
)

// fakeBackend is an in-process stand-in for the service, implementing
// generations, CSEK/KMS key handling, chunked rewrites, and the failure and
// propagation behaviors the client has to cope with.
type fakeBackend struct {
	mu sync.Mutex

	buckets  map[string]*types.BucketInfo
	objects  map[string]*fakeObject
	rewrites map[string]*rewriteState

	// chunkSize caps bytes rewritten per step, before the request's own
	// maxBytesRewrittenPerCall is applied.
	chunkSize int64

	// failRemaining makes the next N requests fail with failStatus.
	failRemaining int
	failStatus    int

	// hideKMSReads hides an inherited default key from that many metadata
	// reads of a newly uploaded object, emulating config propagation lag.
	hideKMSReads int

	srv *httptest.Server
}

type fakeObject struct {
	info types.ObjectInfo
	data []byte

	// csek is the base64 customer key the object was written with, empty
	// for KMS or unencrypted objects.
	csek string

	// kmsHiddenReads counts down metadata reads that still hide the
	// inherited key.
	kmsHiddenReads int
}

type rewriteState struct {
	srcData    []byte
	srcCSEK    string
	destKey    string // resolved destination kmsKeyName, without version
	destCSEK   string
	destSHA256 string
	bytesDone  int64
	perCall    int64
}

func newFakeBackend() *fakeBackend {
	f := &fakeBackend{
		buckets:   map[string]*types.BucketInfo{},
		objects:   map[string]*fakeObject{},
		rewrites:  map[string]*rewriteState{},
		chunkSize: 1 << 20,
	}
	f.srv = httptest.NewServer(http.HandlerFunc(f.handle))
	return f
}

func (f *fakeBackend) Close() {
	f.srv.Close()
}

func (f *fakeBackend) URL() string {
	return f.srv.URL
}

func (f *fakeBackend) addBucket(name, defaultKey string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buckets[name] = &types.BucketInfo{
		Name:              name,
		Metageneration:    1,
		CreatedAt:         time.Now().Unix(),
		UpdatedAt:         time.Now().Unix(),
		DefaultKMSKeyName: defaultKey,
	}
}

// failNext makes the next n requests fail with the given status.
func (f *fakeBackend) failNext(n, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failRemaining = n
	f.failStatus = status
}

func (f *fakeBackend) setChunkSize(n int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chunkSize = n
}

func (f *fakeBackend) setHideKMSReads(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hideKMSReads = n
}

func writeErr(w http.ResponseWriter, status int, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := map[string]map[string]any{
		"error": {"code": status, "message": fmt.Sprintf(format, args...)},
	}
	json.NewEncoder(w).Encode(body)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func objKey(bucket, name string) string {
	return bucket + "/" + name
}

// keyVersion is what the service appends to a key name applied at write time.
const fakeKeyVersion = "/cryptoKeyVersions/1"

func (f *fakeBackend) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	if f.failRemaining > 0 {
		f.failRemaining--
		status := f.failStatus
		f.mu.Unlock()
		writeErr(w, status, "injected failure")
		return
	}
	f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/v1/")
	parts := strings.Split(path, "/")
	// b/{bucket}
	// b/{bucket}/o
	// b/{bucket}/o/{object}
	// b/{srcBucket}/o/{srcObject}/rewriteTo/b/{dstBucket}/o/{dstObject}
	switch {
	case len(parts) == 2 && parts[0] == "b":
		f.handleBucket(w, r, parts[1])
	case len(parts) == 3 && parts[0] == "b" && parts[2] == "o":
		f.handleList(w, r, parts[1])
	case len(parts) == 4 && parts[0] == "b" && parts[2] == "o":
		f.handleObject(w, r, parts[1], parts[3])
	case len(parts) == 8 && parts[0] == "b" && parts[2] == "o" && parts[4] == "rewriteTo":
		f.handleRewrite(w, r, parts[1], parts[3], parts[6], parts[7])
	default:
		writeErr(w, http.StatusBadRequest, "unrecognized path %q", r.URL.Path)
	}
}

func (f *fakeBackend) handleBucket(w http.ResponseWriter, r *http.Request, bucket string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	info, ok := f.buckets[bucket]
	if !ok {
		writeErr(w, http.StatusNotFound, "bucket %q not found", bucket)
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, info)
	case http.MethodPatch:
		var patch struct {
			DefaultKMSKeyName *string `json:"defaultKmsKeyName"`
		}
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			writeErr(w, http.StatusBadRequest, "bad patch body: %v", err)
			return
		}
		if patch.DefaultKMSKeyName == nil {
			info.DefaultKMSKeyName = ""
		} else {
			info.DefaultKMSKeyName = *patch.DefaultKMSKeyName
		}
		info.Metageneration++
		info.UpdatedAt = time.Now().Unix()
		writeJSON(w, info)
	default:
		writeErr(w, http.StatusBadRequest, "bad bucket method %s", r.Method)
	}
}

// csekFromRequest validates the CSEK headers and returns the base64 key.
func csekFromRequest(h http.Header, algHeader, keyHeader, shaHeader string) (key, sha string, err error) {
	key = h.Get(keyHeader)
	if key == "" {
		return "", "", nil
	}
	if h.Get(algHeader) != csekAlgorithm {
		return "", "", fmt.Errorf("unsupported algorithm %q", h.Get(algHeader))
	}
	raw, decErr := base64.StdEncoding.DecodeString(key)
	if decErr != nil || len(raw) != 32 {
		return "", "", fmt.Errorf("malformed encryption key")
	}
	sum := sha256.Sum256(raw)
	sha = base64.StdEncoding.EncodeToString(sum[:])
	if h.Get(shaHeader) != sha {
		return "", "", fmt.Errorf("encryption key hash mismatch")
	}
	return key, sha, nil
}

func (f *fakeBackend) handleList(w http.ResponseWriter, r *http.Request, bucket string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.buckets[bucket]; !ok {
		writeErr(w, http.StatusNotFound, "bucket %q not found", bucket)
		return
	}
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusBadRequest, "bad list method %s", r.Method)
		return
	}

	prefix := r.URL.Query().Get("prefix")
	items := []*types.ObjectInfo{}
	for _, obj := range f.objects {
		if obj.info.Bucket != bucket || !strings.HasPrefix(obj.info.Name, prefix) {
			continue
		}
		info := obj.info
		items = append(items, &info)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	writeJSON(w, map[string]any{"items": items})
}

func (f *fakeBackend) handleObject(w http.ResponseWriter, r *http.Request, bucket, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	bkt, ok := f.buckets[bucket]
	if !ok {
		writeErr(w, http.StatusNotFound, "bucket %q not found", bucket)
		return
	}
	key := objKey(bucket, name)
	q := r.URL.Query()

	switch r.Method {
	case http.MethodPost:
		f.putObject(w, r, bkt, name, key)

	case http.MethodGet:
		obj, ok := f.objects[key]
		if !ok {
			writeErr(w, http.StatusNotFound, "object %q not found", key)
			return
		}
		if q.Get("alt") == "media" {
			if gen := q.Get("generation"); gen != "" {
				want, _ := strconv.ParseInt(gen, 10, 64)
				if want != obj.info.Generation {
					writeErr(w, http.StatusNotFound, "generation %s not found", gen)
					return
				}
			}
			if obj.csek != "" {
				got, _, err := csekFromRequest(r.Header, headerEncryptionAlgorithm, headerEncryptionKey, headerEncryptionKeySHA256)
				if err != nil {
					writeErr(w, http.StatusBadRequest, "%v", err)
					return
				}
				if got != obj.csek {
					writeErr(w, http.StatusBadRequest, "resource is encrypted with a customer-supplied key")
					return
				}
			}
			w.Write(obj.data)
			return
		}
		info := obj.info
		if obj.kmsHiddenReads > 0 {
			obj.kmsHiddenReads--
			info.KMSKeyName = ""
		}
		writeJSON(w, &info)

	case http.MethodDelete:
		obj, ok := f.objects[key]
		if !ok {
			writeErr(w, http.StatusNotFound, "object %q not found", key)
			return
		}
		if gen := q.Get("ifGenerationMatch"); gen != "" {
			want, _ := strconv.ParseInt(gen, 10, 64)
			if want != obj.info.Generation {
				writeErr(w, http.StatusPreconditionFailed, "generation mismatch")
				return
			}
		}
		delete(f.objects, key)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("{}"))

	default:
		writeErr(w, http.StatusBadRequest, "bad object method %s", r.Method)
	}
}

// putObject handles an upload. Callers hold f.mu.
func (f *fakeBackend) putObject(w http.ResponseWriter, r *http.Request, bkt *types.BucketInfo, name, key string) {
	q := r.URL.Query()
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "reading body: %v", err)
		return
	}

	if sum := r.Header.Get(headerContentChecksum); sum != "" && sum != contentChecksum(data) {
		writeErr(w, http.StatusBadRequest, "content checksum mismatch")
		return
	}

	csek, csekSHA, err := csekFromRequest(r.Header, headerEncryptionAlgorithm, headerEncryptionKey, headerEncryptionKeySHA256)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "%v", err)
		return
	}
	kmsKey := q.Get("kmsKeyName")
	if csek != "" && kmsKey != "" {
		writeErr(w, http.StatusBadRequest, "cannot combine customer key with kms key")
		return
	}
	if strings.Contains(kmsKey, keyVersionSegment) {
		writeErr(w, http.StatusBadRequest, "kmsKeyName must not name a key version")
		return
	}

	prev := f.objects[key]
	if gen := q.Get("ifGenerationMatch"); gen != "" {
		want, _ := strconv.ParseInt(gen, 10, 64)
		var current int64
		if prev != nil {
			current = prev.info.Generation
		}
		if want != current {
			writeErr(w, http.StatusPreconditionFailed, "generation mismatch")
			return
		}
	}

	hiddenReads := 0
	if csek == "" && kmsKey == "" && bkt.DefaultKMSKeyName != "" {
		// Bucket default applied server-side. Metadata reads may lag.
		kmsKey = bkt.DefaultKMSKeyName
		hiddenReads = f.hideKMSReads
	}

	var generation int64 = 1
	if prev != nil {
		generation = prev.info.Generation + 1
	}

	obj := &fakeObject{
		data:           data,
		csek:           csek,
		kmsHiddenReads: hiddenReads,
		info: types.ObjectInfo{
			ID:                uuid.New(),
			Bucket:            bkt.Name,
			Name:              name,
			Generation:        generation,
			Metageneration:    1,
			Size:              int64(len(data)),
			ETag:              fmt.Sprintf("etag-%d", generation),
			CreatedAt:         time.Now().Unix(),
			UpdatedAt:         time.Now().Unix(),
			Checksum:          contentChecksum(data),
			CustomerKeySHA256: csekSHA,
		},
	}
	if kmsKey != "" {
		obj.info.KMSKeyName = kmsKey + fakeKeyVersion
	}
	f.objects[key] = obj
	writeJSON(w, &obj.info)
}

func (f *fakeBackend) handleRewrite(w http.ResponseWriter, r *http.Request, srcBucket, srcName, dstBucket, dstName string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	q := r.URL.Query()
	bkt, ok := f.buckets[dstBucket]
	if !ok {
		writeErr(w, http.StatusNotFound, "bucket %q not found", dstBucket)
		return
	}

	token := q.Get("rewriteToken")
	var state *rewriteState
	if token == "" {
		src, ok := f.objects[objKey(srcBucket, srcName)]
		if !ok {
			writeErr(w, http.StatusNotFound, "source %s/%s not found", srcBucket, srcName)
			return
		}
		if gen := q.Get("sourceGeneration"); gen != "" {
			want, _ := strconv.ParseInt(gen, 10, 64)
			if want != src.info.Generation {
				writeErr(w, http.StatusNotFound, "source generation %s not found", gen)
				return
			}
		}
		if src.csek != "" {
			got, _, err := csekFromRequest(r.Header, headerSourceEncryptionAlgorithm, headerSourceEncryptionKey, headerSourceEncryptionKeySHA256)
			if err != nil {
				writeErr(w, http.StatusBadRequest, "%v", err)
				return
			}
			if got != src.csek {
				writeErr(w, http.StatusBadRequest, "source is encrypted with a customer-supplied key")
				return
			}
		}

		destKey := q.Get("destinationKmsKeyName")
		if strings.Contains(destKey, keyVersionSegment) {
			writeErr(w, http.StatusBadRequest, "destinationKmsKeyName must not name a key version")
			return
		}
		destCSEK, destSHA, err := csekFromRequest(r.Header, headerEncryptionAlgorithm, headerEncryptionKey, headerEncryptionKeySHA256)
		if err != nil {
			writeErr(w, http.StatusBadRequest, "%v", err)
			return
		}
		if destCSEK != "" && destKey != "" {
			writeErr(w, http.StatusBadRequest, "cannot combine customer key with kms key")
			return
		}
		if destCSEK == "" && destKey == "" && bkt.DefaultKMSKeyName != "" {
			destKey = bkt.DefaultKMSKeyName
		}

		var perCall int64
		if raw := q.Get("maxBytesRewrittenPerCall"); raw != "" {
			perCall, _ = strconv.ParseInt(raw, 10, 64)
		}

		state = &rewriteState{
			srcData:    append([]byte(nil), src.data...),
			srcCSEK:    src.csek,
			destKey:    destKey,
			destCSEK:   destCSEK,
			destSHA256: destSHA,
			perCall:    perCall,
		}
	} else {
		state, ok = f.rewrites[token]
		if !ok {
			writeErr(w, http.StatusBadRequest, "invalid rewrite token")
			return
		}
		delete(f.rewrites, token)
	}

	chunk := f.chunkSize
	if state.perCall > 0 && state.perCall < chunk {
		chunk = state.perCall
	}
	state.bytesDone += chunk
	total := int64(len(state.srcData))
	if state.bytesDone < total {
		next := uuid.NewString()
		f.rewrites[next] = state
		writeJSON(w, map[string]any{
			"rewriteToken":        next,
			"totalBytesRewritten": state.bytesDone,
			"objectSize":          total,
			"done":                false,
		})
		return
	}
	state.bytesDone = total

	// Final step: apply the destination precondition and write the object.
	key := objKey(dstBucket, dstName)
	prev := f.objects[key]
	if gen := q.Get("ifGenerationMatch"); gen != "" {
		want, _ := strconv.ParseInt(gen, 10, 64)
		var current int64
		if prev != nil {
			current = prev.info.Generation
		}
		if want != current {
			writeErr(w, http.StatusPreconditionFailed, "generation mismatch")
			return
		}
	}

	var generation int64 = 1
	if prev != nil {
		generation = prev.info.Generation + 1
	}
	obj := &fakeObject{
		data: append([]byte(nil), state.srcData...),
		csek: state.destCSEK,
		info: types.ObjectInfo{
			ID:                uuid.New(),
			Bucket:            dstBucket,
			Name:              dstName,
			Generation:        generation,
			Metageneration:    1,
			Size:              total,
			ETag:              fmt.Sprintf("etag-%d", generation),
			CreatedAt:         time.Now().Unix(),
			UpdatedAt:         time.Now().Unix(),
			Checksum:          contentChecksum(state.srcData),
			CustomerKeySHA256: state.destSHA256,
		},
	}
	if state.destKey != "" {
		obj.info.KMSKeyName = state.destKey + fakeKeyVersion
	}
	f.objects[key] = obj

	writeJSON(w, map[string]any{
		"totalBytesRewritten": total,
		"objectSize":          total,
		"done":                true,
		"resource":            &obj.info,
	})
}
