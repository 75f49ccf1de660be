package gateway

import (
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/serrebi/streamgate/internal/types"
	"github.com/serrebi/streamgate/internal/util"
)

// errRelayDone marks a relay engine stopped because its client finished.
var errRelayDone = errors.New("relay finished")

// upstreamClient fetches relay sources. The timeout bounds connection and
// response-header wait only; live bodies are read until the relay ends.
var upstreamClient = &http.Client{
	Transport: &http.Transport{
		DialContext:           (&net.Dialer{Timeout: types.UpstreamTimeout}).DialContext,
		ResponseHeaderTimeout: types.UpstreamTimeout,
		Proxy:                 http.ProxyFromEnvironment,
	},
}

// fetchUpstream issues a GET for the target with the caller's headers and
// returns the response once its status is confirmed successful.
func fetchUpstream(target string, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodGet, target, http.NoBody)
	if err != nil {
		return nil, util.WrapError("build upstream request", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := upstreamClient.Do(req)
	if err != nil {
		return nil, util.WrapError("fetch upstream", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		util.SafeCloseFunc(resp.Body, "upstream body")()
		return nil, fmt.Errorf("upstream returned status %d", resp.StatusCode)
	}
	return resp, nil
}
