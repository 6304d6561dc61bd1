package api

import (
	"encoding/json"
	"net/http"
)

type JsonResponse struct {
	Status  string `json:"status"` // "success" or "error"
	Data    any    `json:"data,omitempty"`
	ErrCode string `json:"code,omitempty"`
	ErrMsg  string `json:"message,omitempty"`
}

func writeJson(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(JsonResponse{Status: "success", Data: data})
}

func writeJsonError(w http.ResponseWriter, statusCode int, errCode, errMsg string) {
	writeJsonErrorData(w, statusCode, errCode, errMsg, nil)
}

func writeJsonErrorData(w http.ResponseWriter, statusCode int, errCode, errMsg string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(JsonResponse{Status: "error", Data: data, ErrCode: errCode, ErrMsg: errMsg})
}

func writeJsonInternalServerError(w http.ResponseWriter) {
	writeJsonError(w,
		http.StatusInternalServerError,
		"internal_server_error",
		http.StatusText(http.StatusInternalServerError))
}
