package http

import (
	"net/http"
	"net/url"

	apierrors "salesdash/internal/errors"
	"salesdash/internal/middleware"
	"salesdash/internal/pipeline"
)

// requestFromValues reads the filter parameters. Dimension values repeat:
// ?region=East&region=West.
func requestFromValues(v url.Values) pipeline.Request {
	return pipeline.Request{
		Start:  v.Get("start"),
		End:    v.Get("end"),
		Region: v["region"],
		State:  v["state"],
		City:   v["city"],
	}.Normalize()
}

// parseQuery validates the URL filter parameters and converts them.
func parseQuery(r *http.Request, v *middleware.Validator) (pipeline.Request, pipeline.Query, error) {
	req := requestFromValues(r.URL.Query())
	if err := v.ValidateStruct(req); err != nil {
		return req, pipeline.Query{}, err
	}
	q, err := req.Query()
	if err != nil {
		return req, pipeline.Query{}, apierrors.InvalidRequestWithError(err)
	}
	return req, q, nil
}

// encodeRequest is the inverse of requestFromValues, used to keep filters
// on chart links.
func encodeRequest(req pipeline.Request) string {
	v := url.Values{}
	if req.Start != "" {
		v.Set("start", req.Start)
	}
	if req.End != "" {
		v.Set("end", req.End)
	}
	for _, s := range req.Region {
		v.Add("region", s)
	}
	for _, s := range req.State {
		v.Add("state", s)
	}
	for _, s := range req.City {
		v.Add("city", s)
	}
	return v.Encode()
}
