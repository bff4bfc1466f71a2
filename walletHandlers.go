package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/storefront_backend/config"
	"github.com/mmdatafocus/storefront_backend/models"
)

func getWalletHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userId, ok := currentUserId(c)
		if !ok {
			return
		}
		wallet, err := models.GetWalletView(c.Request.Context(), config.GetDB(), userId)
		if err != nil {
			respondError(c, err)
			return
		}
		respondData(c, http.StatusOK, wallet)
	}
}

func topUpWalletHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userId, ok := currentUserId(c)
		if !ok {
			return
		}
		var input models.TopUpInput
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindingError(c, err)
			return
		}
		release, ok := lockUser(c, userId, walletLock)
		if !ok {
			return
		}
		defer release()
		wallet, err := models.TopUpWallet(c.Request.Context(), config.GetDB(), userId, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		respondData(c, http.StatusOK, wallet)
	}
}

func verifyReferralHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userId, ok := currentUserId(c)
		if !ok {
			return
		}
		var input models.ReferralInput
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindingError(c, err)
			return
		}
		release, ok := lockUser(c, userId, walletLock)
		if !ok {
			return
		}
		defer release()
		err := models.RedeemReferral(c.Request.Context(), config.GetDB(), userId, input.ReferralCode, config.ReferralRewardAmount())
		if err != nil {
			respondError(c, err)
			return
		}
		respondMessage(c, "Referral code applied successfully")
	}
}
