package modules

import (
	"github.com/meridianhq/crm-backoffice/modules/crm"
	"github.com/meridianhq/crm-backoffice/pkg/application"
)

var BuiltInModules = []application.Module{
	crm.NewModule(),
}

func Load(app application.Application, externalModules ...application.Module) error {
	for _, module := range append(BuiltInModules, externalModules...) {
		if err := module.Register(app); err != nil {
			return err
		}
	}
	return nil
}
