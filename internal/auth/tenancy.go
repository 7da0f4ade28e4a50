package auth

import "context"

// headOfficeCompanyID is the tenant that administers every other company.
const headOfficeCompanyID = 1

// IsHeadOffice reports whether the request was made by a head-office user.
func IsHeadOffice(ctx context.Context) bool {
	return CompanyIDFromContext(ctx) == headOfficeCompanyID
}

// GetTargetCompanyID resolves which company a write should land in. Head
// office may target any company via the request body; everyone else is
// pinned to their own.
func GetTargetCompanyID(ctx context.Context, requested *int64) int64 {
	own := CompanyIDFromContext(ctx)
	if requested == nil || *requested <= 0 {
		return own
	}
	if IsHeadOffice(ctx) {
		return *requested
	}
	return own
}

// CanManageCompany reports whether the caller may administer the target
// company's users.
func CanManageCompany(ctx context.Context, targetCompanyID int64) bool {
	if IsHeadOffice(ctx) {
		return true
	}
	return CompanyIDFromContext(ctx) == targetCompanyID
}
