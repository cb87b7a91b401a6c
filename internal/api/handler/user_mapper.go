package handler

import "github.com/99minutos/identity-service/internal/core/domain"

func toUserResponse(u *domain.User) userResponse {
	return userResponse{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		IsStaff:    u.IsStaff,
		LastLogin:  u.LastLogin,
		DateJoined: u.DateJoined,
	}
}

func toUserResponses(users []*domain.User) []userResponse {
	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	return out
}

func toClaimsResponse(c domain.Claims) claimsResponse {
	return claimsResponse{
		UserID:   c.UserID,
		Username: c.Username,
		Email:    c.Email,
		IsStaff:  c.IsStaff,
	}
}
