package storage

import "github.com/fintalk/iecat/internal/model"

// DefaultSeeds returns the built-in keyword table used to bootstrap an
// empty rule store.
func DefaultSeeds() []model.SeedRule {
	var seeds []model.SeedRule
	add := func(txType model.TransactionType, category string, keywords ...string) {
		for _, k := range keywords {
			seeds = append(seeds, model.SeedRule{Keyword: k, Type: txType, Category: category})
		}
	}

	add(model.TypeIncome, "고정소득", "급여", "월급", "연봉", "봉급", "임금", "식대", "교통비", "주거수당")
	add(model.TypeIncome, "변동소득", "상여", "상여금", "보너스", "성과급", "인센티브", "수당")
	add(model.TypeIncome, "기타소득", "이자", "배당", "배당금", "이자소득")

	add(model.TypeExpense, "고정지출", "보험료", "국민연금", "건강보험", "고용보험", "산재보험",
		"세금", "소득세", "지방소득세", "주민세")
	add(model.TypeExpense, "변동지출", "카드", "신용카드", "체크카드", "카드사용액")
	add(model.TypeExpense, "기타 및 예비비", "공제", "공제액", "차감")

	add(model.TypeTotalIncome, "", "총 소득", "총소득", "총수입", "총 수입")
	add(model.TypeTotalExpense, "", "총 지출", "총지출", "총 비용", "총비용")

	return seeds
}
