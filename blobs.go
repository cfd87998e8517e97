package scree

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"
)

const mediaTypeOctetStream = "application/octet-stream"

func (r *registry) handleBlobHead(w http.ResponseWriter, req *http.Request) error {
	dgst, err := ParseDigest(mux.Vars(req)["digest"])
	if err != nil {
		return err
	}
	info, err := r.store.BlobStat(req.Context(), dgst)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Length", fmt.Sprint(info.Size))
	w.Header().Set("Docker-Content-Digest", dgst.String())
	w.Header().Set("Content-Type", mediaTypeOctetStream)
	w.WriteHeader(http.StatusOK)
	return nil
}

func (r *registry) handleBlobGet(w http.ResponseWriter, req *http.Request) error {
	dgst, err := ParseDigest(mux.Vars(req)["digest"])
	if err != nil {
		return err
	}
	blob, err := r.store.BlobReader(req.Context(), dgst)
	if err != nil {
		return err
	}
	defer blob.Close()
	w.Header().Set("Content-Type", mediaTypeOctetStream)
	w.Header().Set("Docker-Content-Digest", dgst.String())
	w.WriteHeader(http.StatusOK)
	// The response is already committed, so an error copying the
	// stream can only truncate the body; the client's digest check
	// catches that.
	io.Copy(w, blob)
	return nil
}
