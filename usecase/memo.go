package usecase

import (
	"rwadriver/domain"
	"rwadriver/interface/repository"
)

const (
	ExtractionMemoKey = "extraction"
)

type MemoInteractor struct {
	memoRepository *repository.MemoRepository
}

func NewMemoInteractor(memoRepository *repository.MemoRepository) *MemoInteractor {
	interactor := &MemoInteractor{
		memoRepository: memoRepository,
	}
	return interactor
}

func (interactor *MemoInteractor) GetLatestScannedBlock() (uint64, error) {
	memo, err := interactor.memoRepository.Find(ExtractionMemoKey)
	if err != nil || memo == nil {
		return 0, err
	}

	var extractionMemo domain.ExtractionMemo
	extractionMemo.FromJson(memo.Memo)
	return extractionMemo.LatestScannedBlock, nil
}

func (interactor *MemoInteractor) SetLatestScannedBlock(block uint64) error {
	extractionMemo := domain.ExtractionMemo{LatestScannedBlock: block}
	_, err := interactor.memoRepository.Upsert(ExtractionMemoKey, &extractionMemo)
	return err
}
