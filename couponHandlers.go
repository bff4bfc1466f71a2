package main

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/storefront_backend/config"
	"github.com/mmdatafocus/storefront_backend/models"
)

func listActiveCouponsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		p := models.NewPageRequest(c.Query("page"), c.Query("limit"))
		page, err := models.ListActiveCoupons(c.Request.Context(), config.GetDB(), p, time.Now())
		if err != nil {
			respondError(c, err)
			return
		}
		respondData(c, http.StatusOK, page)
	}
}

func applyCouponHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userId, ok := currentUserId(c)
		if !ok {
			return
		}
		var req models.ApplyCouponRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindingError(c, err)
			return
		}
		lines, err := models.PreviewCoupon(c.Request.Context(), config.GetDB(), userId, req, time.Now())
		if err != nil {
			respondError(c, err)
			return
		}
		respondData(c, http.StatusOK, lines)
	}
}

func listCouponsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		p := models.NewPageRequest(c.Query("page"), c.Query("limit"))
		page, err := models.ListCoupons(c.Request.Context(), config.GetDB(), p)
		if err != nil {
			respondError(c, err)
			return
		}
		respondData(c, http.StatusOK, page)
	}
}

func createCouponHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewCoupon
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindingError(c, err)
			return
		}
		coupon, err := models.CreateCoupon(c.Request.Context(), config.GetDB(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		respondData(c, http.StatusCreated, coupon)
	}
}

func toggleCouponStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramId(c, "id")
		if !ok {
			return
		}
		coupon, err := models.ToggleCouponStatus(c.Request.Context(), config.GetDB(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		respondData(c, http.StatusOK, coupon)
	}
}

func deleteCouponHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramId(c, "id")
		if !ok {
			return
		}
		if err := models.DeleteCoupon(c.Request.Context(), config.GetDB(), id); err != nil {
			respondError(c, err)
			return
		}
		respondMessage(c, "Coupon deleted successfully")
	}
}

func listOffersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		p := models.NewPageRequest(c.Query("page"), c.Query("limit"))
		page, err := models.ListOffers(c.Request.Context(), config.GetDB(), p)
		if err != nil {
			respondError(c, err)
			return
		}
		respondData(c, http.StatusOK, page)
	}
}

func createOfferHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewOffer
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindingError(c, err)
			return
		}
		offer, err := models.CreateOffer(c.Request.Context(), config.GetDB(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		respondData(c, http.StatusCreated, offer)
	}
}

func deleteOfferHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramId(c, "id")
		if !ok {
			return
		}
		if err := models.DeleteOffer(c.Request.Context(), config.GetDB(), id); err != nil {
			respondError(c, err)
			return
		}
		respondMessage(c, "Offer deleted successfully")
	}
}
