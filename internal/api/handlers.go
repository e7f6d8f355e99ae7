package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vaultik/capsulechain/internal/assetindex"
	"github.com/vaultik/capsulechain/internal/fault"
	"github.com/vaultik/capsulechain/internal/services"
)

type API struct {
	auth      *services.AuthService
	capsules  *services.CapsuleService
	transfers *services.TransferService
	index     assetindex.Service
}

func NewAPI(
	auth *services.AuthService,
	capsules *services.CapsuleService,
	transfers *services.TransferService,
	index assetindex.Service,
) *API {
	return &API{
		auth:      auth,
		capsules:  capsules,
		transfers: transfers,
		index:     index,
	}
}

// Routes mounts every endpoint onto a chi router.
func (a *API) Routes(r chi.Router) {
	r.Post("/v1/token", a.handleIssueToken)
	r.Get("/v1/config", a.handleGetConfig)
	r.Get("/v1/capsules/{address}", a.handleGetCapsule)
	r.Get("/v1/creators/{creator}/capsules/{id}", a.handleGetCapsuleByCreator)
	r.Get("/v1/owners/{owner}/capsules", a.handleListCapsules)
	r.Get("/v1/assets/{id}", a.handleGetAsset)
	r.Get("/v1/assets/{id}/signatures", a.handleGetAssetSignatures)
	r.Get("/v1/owners/{owner}/assets", a.handleListAssets)

	r.Group(func(r chi.Router) {
		r.Use(a.withAuth)
		r.Post("/v1/config/init", a.handleInitConfig)
		r.Post("/v1/capsules", a.handleCreateCapsule)
		r.Patch("/v1/capsules/{address}", a.handleUpdateCapsule)
		r.Post("/v1/capsules/{address}/unlock", a.handleUnlockCapsule)
		r.Delete("/v1/capsules/{address}", a.handleCloseCapsule)
		r.Post("/v1/capsules/{address}/transfer", a.handleTransfer)
		r.Post("/v1/capsules/{address}/transfer/resume", a.handleResumeTransfer)
		r.Get("/v1/capsules/{address}/locator", a.handleRevealLocator)
	})
}

func (a *API) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Principal string `json:"principal"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body", Class: "validation"})
		return
	}

	token, expiresAt, err := a.auth.IssueToken(req.Principal)
	if err != nil {
		respondFault(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"token":      token,
		"expires_at": expiresAt,
	})
}

func (a *API) handleInitConfig(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(r)
	if !ok {
		respondJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized", Class: "auth"})
		return
	}

	config, err := a.capsules.InitializeConfig(r.Context(), principal)
	if err != nil {
		respondFault(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, config)
}

func (a *API) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	config, err := a.capsules.GetConfig(r.Context())
	if err != nil {
		respondFault(w, err)
		return
	}
	respondJSON(w, http.StatusOK, config)
}

func (a *API) handleCreateCapsule(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(r)
	if !ok {
		respondJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized", Class: "auth"})
		return
	}

	var req struct {
		Title      string    `json:"title"`
		Content    string    `json:"content"`
		UnlockDate time.Time `json:"unlock_date"`
		Locator    *string   `json:"locator,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body", Class: "validation"})
		return
	}

	capsule, err := a.capsules.Create(r.Context(), principal, services.CreateCapsuleRequest{
		Title:      req.Title,
		Content:    req.Content,
		UnlockDate: req.UnlockDate,
		Locator:    req.Locator,
	})
	if err != nil {
		respondFault(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, capsule)
}

func (a *API) handleGetCapsule(w http.ResponseWriter, r *http.Request) {
	capsule, err := a.capsules.GetCapsule(r.Context(), chi.URLParam(r, "address"))
	if err != nil {
		respondFault(w, err)
		return
	}
	respondJSON(w, http.StatusOK, capsule)
}

func (a *API) handleGetCapsuleByCreator(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid capsule id", Class: "validation"})
		return
	}

	capsule, err := a.capsules.GetCapsuleByCreatorAndID(r.Context(), chi.URLParam(r, "creator"), id)
	if err != nil {
		respondFault(w, err)
		return
	}
	respondJSON(w, http.StatusOK, capsule)
}

func (a *API) handleListCapsules(w http.ResponseWriter, r *http.Request) {
	capsules, err := a.capsules.ListByOwner(r.Context(), chi.URLParam(r, "owner"))
	if err != nil {
		respondFault(w, err)
		return
	}
	respondJSON(w, http.StatusOK, capsules)
}

func (a *API) handleUpdateCapsule(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(r)
	if !ok {
		respondJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized", Class: "auth"})
		return
	}

	var req struct {
		NewContent         *string    `json:"new_content,omitempty"`
		NewUnlockDate      *time.Time `json:"new_unlock_date,omitempty"`
		NewLocator         *string    `json:"new_locator,omitempty"`
		RemoveEncryptedURL bool       `json:"remove_encrypted_url,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body", Class: "validation"})
		return
	}

	capsule, err := a.capsules.Update(r.Context(), principal, chi.URLParam(r, "address"), services.UpdateCapsuleRequest{
		NewContent:         req.NewContent,
		NewUnlockDate:      req.NewUnlockDate,
		NewLocator:         req.NewLocator,
		RemoveEncryptedURL: req.RemoveEncryptedURL,
	})
	if err != nil {
		respondFault(w, err)
		return
	}
	respondJSON(w, http.StatusOK, capsule)
}

func (a *API) handleUnlockCapsule(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(r)
	if !ok {
		respondJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized", Class: "auth"})
		return
	}

	capsule, err := a.capsules.Unlock(r.Context(), principal, chi.URLParam(r, "address"))
	if err != nil {
		respondFault(w, err)
		return
	}
	respondJSON(w, http.StatusOK, capsule)
}

func (a *API) handleCloseCapsule(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(r)
	if !ok {
		respondJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized", Class: "auth"})
		return
	}

	reclaimed, err := a.capsules.Close(r.Context(), principal, chi.URLParam(r, "address"))
	if err != nil {
		respondFault(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]uint64{"reclaimed": reclaimed})
}

func (a *API) handleTransfer(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(r)
	if !ok {
		respondJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized", Class: "auth"})
		return
	}

	var req struct {
		NewOwner     string `json:"new_owner"`
		AssetID      string `json:"asset_id,omitempty"`
		IncludeAsset bool   `json:"include_asset"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body", Class: "validation"})
		return
	}

	outcome, err := a.transfers.Transfer(r.Context(), principal, services.CombinedTransferRequest{
		CapsuleAddr:  chi.URLParam(r, "address"),
		NewOwner:     req.NewOwner,
		AssetID:      req.AssetID,
		IncludeAsset: req.IncludeAsset,
	})
	if err != nil && outcome == nil {
		respondFault(w, err)
		return
	}
	if err != nil {
		// nothing committed; surface the outcome body with the fault status
		respondJSON(w, faultStatus(err), outcome)
		return
	}
	respondJSON(w, http.StatusOK, outcome)
}

func (a *API) handleResumeTransfer(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(r)
	if !ok {
		respondJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized", Class: "auth"})
		return
	}

	var req struct {
		NewOwner string `json:"new_owner"`
		AssetID  string `json:"asset_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body", Class: "validation"})
		return
	}

	outcome, err := a.transfers.ResumeAssetTransfer(r.Context(), principal, services.CombinedTransferRequest{
		CapsuleAddr: chi.URLParam(r, "address"),
		NewOwner:    req.NewOwner,
		AssetID:     req.AssetID,
	})
	if err != nil {
		respondFault(w, err)
		return
	}
	respondJSON(w, http.StatusOK, outcome)
}

func (a *API) handleRevealLocator(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(r)
	if !ok {
		respondJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized", Class: "auth"})
		return
	}

	capsule, err := a.capsules.GetCapsule(r.Context(), chi.URLParam(r, "address"))
	if err != nil {
		respondFault(w, err)
		return
	}

	locator, err := a.capsules.RevealLocator(capsule, principal)
	if errors.Is(err, fault.ErrNoLocatorRecovered) {
		// degrade instead of failing the read path
		respondJSON(w, http.StatusOK, map[string]any{"locator": nil})
		return
	}
	if err != nil {
		respondFault(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"locator": locator})
}

func (a *API) handleGetAsset(w http.ResponseWriter, r *http.Request) {
	asset, err := a.index.GetAsset(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondFault(w, err)
		return
	}
	respondJSON(w, http.StatusOK, asset)
}

func (a *API) handleGetAssetSignatures(w http.ResponseWriter, r *http.Request) {
	signatures, err := a.index.GetSignaturesForAsset(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondFault(w, err)
		return
	}
	respondJSON(w, http.StatusOK, signatures)
}

func (a *API) handleListAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := a.index.GetAssetsByOwner(r.Context(), chi.URLParam(r, "owner"))
	if err != nil {
		respondFault(w, err)
		return
	}
	respondJSON(w, http.StatusOK, assets)
}
