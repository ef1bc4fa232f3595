package service

import (
	"fmt"

	"github.com/ecocampus/ecocampus-server/internal/nav"
)

// PageProvider owns one or more navigable pages.
type PageProvider interface {
	Pages() []nav.Page
}

// LoaderProvider owns resources that are loaded without a page of their own,
// such as tab content.
type LoaderProvider interface {
	Loaders(n *nav.Navigator) error
}

// RegisterPages wires every provider's pages and loaders into n. Providers
// may implement either interface or both.
func RegisterPages(n *nav.Navigator, providers ...any) error {
	for _, p := range providers {
		var used bool
		if pp, ok := p.(PageProvider); ok {
			used = true
			if err := n.Register(pp.Pages()...); err != nil {
				return fmt.Errorf("register %T: %w", p, err)
			}
		}
		if lp, ok := p.(LoaderProvider); ok {
			used = true
			if err := lp.Loaders(n); err != nil {
				return fmt.Errorf("register loaders %T: %w", p, err)
			}
		}
		if !used {
			return fmt.Errorf("%T provides no pages or loaders", p)
		}
	}
	return nil
}
