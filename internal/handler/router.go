package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/admission-portal-api/internal/middleware"
	"github.com/noah-isme/admission-portal-api/internal/models"
	"github.com/noah-isme/admission-portal-api/internal/service"
)

// Routes groups the handlers mounted under the API prefix.
type Routes struct {
	Auth            *AuthHandler
	Applications    *ApplicationHandler
	OTP             *OTPHandler
	Admissions      *AdmissionHandler
	MasterData      *MasterDataHandler
	Payments        *PaymentHandler
	Documents       *DocumentHandler
	Acknowledgement *AcknowledgementHandler

	AuthService *service.AuthService
	AuditRepo   middleware.AuditWriter
	Logger      *zap.Logger
}

// Register mounts every API route on group.
func (r Routes) Register(group *gin.RouterGroup) {
	authRequired := middleware.JWT(r.AuthService)
	admin := middleware.RequireRoles(models.RoleAdmin)
	applicant := middleware.RequireRoles(models.RoleStudent, models.RoleAdmin)

	group.POST("/auth/login", r.Auth.Login)
	group.GET("/auth/me", authRequired, r.Auth.Me)

	group.GET("/lookups/:kind", r.MasterData.Lookups)
	group.GET("/public/acknowledgements/:token", r.Acknowledgement.Verify)
	group.POST("/payments/midtrans/notification", r.Payments.Notification)
	group.POST("/admissions/:year/applications", r.Applications.Create)

	apps := group.Group("/applications/:id", authRequired, applicant)
	apps.GET("", r.Applications.Get)
	apps.PATCH("/steps/:step", r.Applications.UpdateStep)
	apps.POST("/submit", r.Applications.Submit)

	apps.GET("/otp/:channel", r.OTP.Status)
	apps.POST("/otp/:channel/send", r.OTP.Send)
	apps.POST("/otp/:channel/verify", r.OTP.Verify)

	apps.GET("/drafts/subject-marks", r.Applications.OpenSubjectMarks)
	apps.POST("/drafts/subject-marks/rows", r.Applications.AddSubjectRow)
	apps.PUT("/drafts/subject-marks/rows/:rowId", r.Applications.UpdateSubjectRow)
	apps.DELETE("/drafts/subject-marks/rows/:rowId", r.Applications.RemoveSubjectRow)
	apps.POST("/drafts/subject-marks/commit", r.Applications.CommitSubjectMarks)
	apps.DELETE("/drafts/subject-marks", r.Applications.CancelSubjectMarks)
	apps.GET("/drafts/institution", r.Applications.OpenInstitution)
	apps.PUT("/drafts/institution", r.Applications.UpdateInstitution)
	apps.POST("/drafts/institution/commit", r.Applications.CommitInstitution)
	apps.DELETE("/drafts/institution", r.Applications.CancelInstitution)

	apps.POST("/payment", r.Payments.Initiate)
	apps.POST("/documents", r.Documents.Upload)
	apps.GET("/documents", r.Documents.List)
	apps.DELETE("/documents/:documentId", r.Documents.Delete)
	apps.GET("/acknowledgement", r.Acknowledgement.Slip)

	exportAudit := func(resource string) gin.HandlerFunc {
		return middleware.Audit(r.AuditRepo, r.Logger, models.AuditActionExport, resource)
	}

	admissions := group.Group("/admissions/:year", authRequired, admin)
	admissions.GET("", r.Admissions.Overview)
	admissions.POST("/bulk-action", r.Admissions.BulkAction)
	admissions.GET("/export", exportAudit("applications"), r.Admissions.Export)

	optionalAuth := middleware.OptionalJWT(r.AuthService)
	for _, kindSpec := range models.MasterDataKinds() {
		path := "/" + string(kindSpec.Kind)
		kind := withKindParam(kindSpec.Kind)
		if kindSpec.Public {
			group.GET(path, optionalAuth, kind, r.MasterData.Public(kindSpec.Kind))
		} else {
			group.GET(path, authRequired, admin, kind, r.MasterData.List)
		}

		manage := group.Group(path, authRequired, admin, kind)
		manage.POST("", r.MasterData.Create)
		manage.PUT("", r.MasterData.Update)
		manage.PATCH("", r.MasterData.SetStatus)
		manage.POST("/upload", r.MasterData.Upload)
		manage.GET("/download", exportAudit("master_data"), r.MasterData.Download)
	}
}
