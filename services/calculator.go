package services

import (
	"time"

	"market-surplus/models"
	"market-surplus/utils"
)

// Pipeline stage names recorded in models.Failure.
const (
	StageDemandFit   = "demand_fit"
	StageSupplyFit   = "supply_fit"
	StageEquilibrium = "equilibrium"
)

// Calculator runs the fit → equilibrium → surplus pipeline. It holds no
// per-call state, so one instance can serve concurrent calls.
type Calculator struct {
	logger *utils.Logger
	now    func() time.Time
}

// NewCalculator creates a Calculator with the given logger.
func NewCalculator(logger *utils.Logger) *Calculator {
	return &Calculator{logger: logger, now: time.Now}
}

// Job is one dataset for CalculateAll.
type Job struct {
	Dataset string
	Demand  models.ObservationSet
	Supply  models.ObservationSet
}

// Calculate fits both curves and derives equilibrium and surplus. A hard
// failure stops the pipeline and is recorded on the bundle; fields of the
// failed and later stages stay nil.
func (c *Calculator) Calculate(dataset string, demand, supply models.ObservationSet) *models.ResultBundle {
	demand, supply = demand.Clone(), supply.Clone()
	bundle := &models.ResultBundle{Dataset: dataset, CalculatedAt: c.now()}

	demandLine, demandFit, err := Fit(demand)
	if err != nil {
		return c.fail(bundle, StageDemandFit, err)
	}
	bundle.Demand, bundle.DemandFit = &demandLine, &demandFit

	supplyLine, supplyFit, err := Fit(supply)
	if err != nil {
		return c.fail(bundle, StageSupplyFit, err)
	}
	bundle.Supply, bundle.SupplyFit = &supplyLine, &supplyFit

	c.logger.Debug("[calculator] %s: demand %s (R²=%.4f), supply %s (R²=%.4f)",
		dataset, demandLine, demandFit.RSquared, supplyLine, supplyFit.RSquared)

	return c.finish(bundle)
}

// CalculateLines skips regression and works from line parameters entered directly.
func (c *Calculator) CalculateLines(dataset string, demand, supply models.LineModel) *models.ResultBundle {
	bundle := &models.ResultBundle{
		Dataset:      dataset,
		Demand:       &demand,
		Supply:       &supply,
		CalculatedAt: c.now(),
	}
	return c.finish(bundle)
}

// CalculateAll runs jobs on a worker pool and returns bundles in job order.
func (c *Calculator) CalculateAll(jobs []Job, maxWorkers int) []*models.ResultBundle {
	results := make([]*models.ResultBundle, len(jobs))

	pool := utils.NewWorkerPool(maxWorkers, 0)
	for i := range jobs {
		idx := i
		pool.Submit(func() {
			results[idx] = c.Calculate(jobs[idx].Dataset, jobs[idx].Demand, jobs[idx].Supply)
		})
	}
	pool.Wait()

	return results
}

func (c *Calculator) finish(bundle *models.ResultBundle) *models.ResultBundle {
	eq, warnings, err := Solve(*bundle.Demand, *bundle.Supply)
	if err != nil {
		return c.fail(bundle, StageEquilibrium, err)
	}
	bundle.Equilibrium = &eq
	bundle.Warnings = append(bundle.Warnings, warnings...)

	surplus, warnings := Surplus(*bundle.Demand, *bundle.Supply, eq)
	bundle.Surplus = &surplus
	bundle.Warnings = append(bundle.Warnings, warnings...)

	for _, w := range bundle.Warnings {
		c.logger.Warn("[calculator] %s: %s", bundle.Dataset, w.Message)
	}
	c.logger.Info("[calculator] %s: equilibrium Q=%.4f P=%.4f | CS=%.4f PS=%.4f",
		bundle.Dataset, eq.Quantity, eq.Price, surplus.Consumer, surplus.Producer)

	return bundle
}

func (c *Calculator) fail(bundle *models.ResultBundle, stage string, err error) *models.ResultBundle {
	bundle.Failure = &models.Failure{Stage: stage, Kind: KindOf(err), Message: err.Error()}
	c.logger.Error("[calculator] %s: %s failed: %v", bundle.Dataset, stage, err)
	return bundle
}
