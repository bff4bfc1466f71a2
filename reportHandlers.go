package main

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/storefront_backend/models/reports"
	"github.com/mmdatafocus/storefront_backend/utils"
)

func salesReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var q reports.SalesReportQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			respondBindingError(c, err)
			return
		}
		resp, err := reports.GetSalesReport(c.Request.Context(), q, time.Now())
		if err != nil {
			respondError(c, err)
			return
		}
		respondData(c, http.StatusOK, resp)
	}
}

func salesReportExcelHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var q reports.SalesReportQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			respondBindingError(c, err)
			return
		}
		export, err := reports.ExportSalesReportExcel(c.Request.Context(), q, time.Now())
		if err != nil {
			respondError(c, err)
			return
		}
		if export.ArchiveURI != "" {
			c.Header("X-Archive-Uri", export.ArchiveURI)
		}
		c.Header("Content-Disposition", `attachment; filename="`+export.FileName+`"`)
		c.Data(http.StatusOK, utils.XlsxContentType, export.Data)
	}
}

func bestSellingHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		resp, err := reports.GetBestSelling(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		respondData(c, http.StatusOK, resp)
	}
}

func dashboardHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		resp, err := reports.GetDashboardData(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		respondData(c, http.StatusOK, resp)
	}
}

func chartDataHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		resp, err := reports.GetChartData(c.Request.Context(), c.Query("year"), c.Query("month"), time.Now())
		if err != nil {
			respondError(c, err)
			return
		}
		respondData(c, http.StatusOK, resp)
	}
}
