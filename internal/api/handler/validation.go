package handler

import (
	"strings"

	"github.com/maraichr/execsearch/pkg/apierr"
)

func validateName(name string) *apierr.Error {
	if name == "" {
		return apierr.NameRequired()
	}
	if len(name) > 255 {
		return apierr.NameTooLong()
	}
	return nil
}

func validateArn(arn string) *apierr.Error {
	if arn == "" || !strings.HasPrefix(arn, "arn:") {
		return apierr.ArnRequired()
	}
	return nil
}
