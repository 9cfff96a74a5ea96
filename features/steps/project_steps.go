//go:build integration

package steps

import (
	"context"
	"fmt"
	"strings"

	"github.com/cucumber/godog"

	"github.com/thesyncim/mediagraph/project"
)

type projectContext struct {
	project   *project.Project
	graph     *project.Graph
	delivered uint64
	runErr    error
}

// SharedProjectContext is reset after each scenario.
var SharedProjectContext = &projectContext{}

func InitializeProjectScenario(ctx *godog.ScenarioContext) {
	ctx.After(func(c context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		if g := SharedProjectContext.graph; g != nil {
			g.Close()
		}
		SharedProjectContext = &projectContext{}
		return c, nil
	})

	ctx.Step(`^the project:$`, func(doc *godog.DocString) error {
		return SharedProjectContext.theProject(doc)
	})
	ctx.Step(`^I run the project$`, func(c context.Context) error {
		return SharedProjectContext.iRunTheProject(c)
	})
	ctx.Step(`^the consumer delivered (\d+) frames$`, func(n int) error {
		return SharedProjectContext.theConsumerDelivered(n)
	})
	ctx.Step(`^the run finished without error$`, func() error {
		return SharedProjectContext.theRunFinishedWithoutError()
	})
	ctx.Step(`^the run fails mentioning "([^"]*)"$`, func(text string) error {
		return SharedProjectContext.theRunFailsMentioning(text)
	})
}

func (p *projectContext) theProject(doc *godog.DocString) error {
	proj, err := project.Parse([]byte(doc.Content))
	if err != nil {
		return err
	}
	p.project = proj
	return nil
}

// iRunTheProject records build and run failures for later steps.
func (p *projectContext) iRunTheProject(ctx context.Context) error {
	factory := SharedGraphContext.factory
	if factory == nil {
		return fmt.Errorf("no factory: missing the built-in services step")
	}
	g, err := p.project.Build(factory)
	if err != nil {
		p.runErr = err
		return nil
	}
	p.graph = g
	if err := g.Consumer.Start(ctx); err != nil {
		p.runErr = err
		return nil
	}
	p.runErr = g.Consumer.Wait()
	p.delivered = g.Consumer.Stats().FramesDelivered
	return nil
}

func (p *projectContext) theConsumerDelivered(n int) error {
	if p.runErr != nil {
		return fmt.Errorf("run failed: %w", p.runErr)
	}
	if p.delivered != uint64(n) {
		return fmt.Errorf("delivered %d frames, expected %d", p.delivered, n)
	}
	return nil
}

func (p *projectContext) theRunFinishedWithoutError() error {
	return p.runErr
}

func (p *projectContext) theRunFailsMentioning(text string) error {
	if p.runErr == nil {
		return fmt.Errorf("expected the run to fail")
	}
	if !strings.Contains(p.runErr.Error(), text) {
		return fmt.Errorf("error %q does not mention %q", p.runErr, text)
	}
	return nil
}
