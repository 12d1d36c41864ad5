package rest

import (
	"encoding/json"
	"net/http"

	ihttp "github.com/whatsagent/landing/internal/http"
	"github.com/whatsagent/landing/internal/taxid"
)

// ValidateTaxID reports the format a tax ID matches. It does not verify the
// ID is registered.
type ValidateTaxID struct{ API }

func (ep ValidateTaxID) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type body struct {
		TaxID   string `json:"taxId" validate:"required,max=32"`
		Country Country `json:"country" validate:"omitempty,iso3166_1_alpha2"`
	}

	var b body
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		ihttp.ErrBadRequest(ep.logger, w, err)
		return
	}

	if err := ep.valid.Struct(b); err != nil {
		ihttp.ErrBadRequest(ep.logger, w, err)
		return
	}

	if err := json.NewEncoder(w).Encode(taxid.Detect(b.TaxID, string(b.Country))); err != nil {
		ihttp.ErrInternal(ep.logger, w, err)
	}
}
