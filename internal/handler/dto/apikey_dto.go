package dto

type ResetAPIKeyRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type ResetAPIKeyResponse struct {
	Email   string `json:"email"`
	APIKey  string `json:"api_key"`
	Message string `json:"message"`
}
